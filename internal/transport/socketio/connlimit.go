package socketio

import (
	"net"
	"sync"
)

// ConnectionLimiter caps concurrent UI clients connecting from other hosts.
// Loopback clients (the on-device display) are never counted. Admitting a
// remote client over the cap evicts the longest-connected remote client.
type ConnectionLimiter struct {
	mu        sync.Mutex
	maxRemote int
	remote    []string          // remote client ids, oldest first
	addrs     map[string]string // client id -> address
}

// NewConnectionLimiter creates a limiter admitting up to maxRemote
// concurrent remote clients.
func NewConnectionLimiter(maxRemote int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxRemote: maxRemote,
		addrs:     make(map[string]string),
	}
}

// TryAdd registers a client. It reports whether the client is admitted and
// which client, if any, was evicted to make room.
func (cl *ConnectionLimiter) TryAdd(clientID, addr string) (allowed bool, evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.addrs[clientID]; ok {
		return true, ""
	}
	cl.addrs[clientID] = addr

	if isLoopback(addr) {
		return true, ""
	}

	cl.remote = append(cl.remote, clientID)
	if len(cl.remote) <= cl.maxRemote {
		return true, ""
	}

	evictedID = cl.remote[0]
	cl.remote = cl.remote[1:]
	delete(cl.addrs, evictedID)
	return true, evictedID
}

// Remove forgets a disconnected client.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	addr, ok := cl.addrs[clientID]
	if !ok {
		return
	}
	delete(cl.addrs, clientID)
	if isLoopback(addr) {
		return
	}

	for i, id := range cl.remote {
		if id == clientID {
			cl.remote = append(cl.remote[:i], cl.remote[i+1:]...)
			return
		}
	}
}

// RemoteCount returns the number of admitted remote clients.
func (cl *ConnectionLimiter) RemoteCount() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.remote)
}

// isLoopback reports whether addr, with or without a port, is a loopback
// address. IPv4-mapped IPv6 forms such as ::ffff:127.0.0.1 count.
func isLoopback(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
