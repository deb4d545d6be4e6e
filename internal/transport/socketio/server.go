// Package socketio provides the Socket.io server that keeps the UI in sync
// with the active player.
package socketio

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/status"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
	"github.com/edumarques81/stellar-playerswitch/internal/infra/notify"
)

// Events pushed to clients.
const (
	EventPushActiveService = "pushActiveService"
	EventPushStatus        = "pushStatus"
	EventPushServices      = "pushServices"
	EventPushSwitchResult  = "pushSwitchResult"
	EventPushSystemInfo    = "pushSystemInfo"
)

const (
	defaultMaxExternal = 4
	statusPushWindow   = 250 * time.Millisecond

	internalErrorMessage = "Internal error"
)

// Switcher performs player switches.
type Switcher interface {
	Switch(ctx context.Context, key string) (*switcher.Result, error)
}

// StatusProvider reports the current device status.
type StatusProvider interface {
	Current(ctx context.Context) status.Snapshot
}

// ActiveService is the payload of pushActiveService.
type ActiveService struct {
	Service string `json:"service"`
}

// Server handles Socket.io connections and events.
type Server struct {
	io       *socket.Server
	switcher Switcher
	status   StatusProvider
	registry *players.Registry
	limiter  *ConnectionLimiter
	pushes   *PushDebouncer

	// ctx bounds switches started by clients; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[string]*socket.Socket
}

// NewServer creates a new Socket.io server. maxExternal caps concurrent
// non-local clients; the oldest is dropped when it is exceeded.
func NewServer(sw Switcher, st StatusProvider, registry *players.Registry, maxExternal int) (*Server, error) {
	if sw == nil || st == nil || registry == nil {
		return nil, errors.New("socketio: switcher, status and registry are required")
	}
	if maxExternal <= 0 {
		maxExternal = defaultMaxExternal
	}

	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io:       socket.NewServer(nil, opts),
		switcher: sw,
		status:   st,
		registry: registry,
		limiter:  NewConnectionLimiter(maxExternal),
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[string]*socket.Socket),
	}
	s.pushes = NewPushDebouncer(statusPushWindow, s.BroadcastStatus)

	s.setupHandlers()
	return s, nil
}

func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		remote := client.Handshake().Address

		allowed, evicted := s.limiter.TryAdd(clientID, remote)
		if !allowed {
			client.Disconnect(true)
			return
		}
		if evicted != "" {
			s.dropClient(evicted)
		}

		log.Info().Str("id", clientID).Str("remote", remote).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		send := replyTo(client)
		go s.handleGetStatus(send)

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getStatus", func(...any) {
			log.Debug().Str("id", clientID).Msg("getStatus")
			go s.handleGetStatus(send)
		})

		client.On("getServices", func(...any) {
			log.Debug().Str("id", clientID).Msg("getServices")
			s.handleGetServices(send)
		})

		client.On("getSystemInfo", func(...any) {
			log.Debug().Str("id", clientID).Msg("getSystemInfo")
			s.handleGetSystemInfo(send)
		})

		client.On("switchService", func(args ...any) {
			key := serviceArg(args)
			log.Debug().Str("id", clientID).Str("service", key).Msg("switchService")
			go s.switchService(send, key)
		})
	})
}

// reply sends one event back to the client that asked.
type reply func(event string, payload any)

func replyTo(client *socket.Socket) reply {
	return func(event string, payload any) {
		client.Emit(event, payload)
	}
}

// ServiceInfo describes one player, as listed by pushServices.
type ServiceInfo struct {
	Key     string `json:"key"`
	Process string `json:"process"`
	Script  string `json:"script"`
}

// serviceArg accepts either "mpd" or {"service": "mpd"}.
func serviceArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	switch v := args[0].(type) {
	case string:
		return v
	case map[string]interface{}:
		key, _ := v["service"].(string)
		return key
	}
	return ""
}

// switchService runs a client-requested switch. A panic anywhere in the
// switch is reported to the client instead of taking the daemon down.
func (s *Server) switchService(send reply, key string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("service", key).
				Bytes("stack", debug.Stack()).
				Msg("Panic during switch")
			send(EventPushSwitchResult, switcher.Result{
				Status:  switcher.StatusError,
				Message: internalErrorMessage,
			})
		}
	}()

	res, err := s.switcher.Switch(s.ctx, key)
	if err != nil {
		send(EventPushSwitchResult, switcher.ErrorResult(err))
		return
	}
	send(EventPushSwitchResult, res)
}

func (s *Server) handleGetStatus(send reply) {
	send(EventPushStatus, s.status.Current(s.ctx))
}

func (s *Server) handleGetServices(send reply) {
	entries := s.registry.Entries()
	out := make([]ServiceInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ServiceInfo{Key: e.Key, Process: e.Process, Script: e.Script})
	}
	send(EventPushServices, out)
}

func (s *Server) handleGetSystemInfo(send reply) {
	send(EventPushSystemInfo, GetSystemInfo(s.status.Current(s.ctx)))
}

func (s *Server) dropClient(id string) {
	s.mu.Lock()
	client, ok := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()

	if ok {
		log.Info().Str("id", id).Msg("Dropping oldest external client")
		client.Disconnect(true)
	}
}

// Notify implements notify.Notifier: a ServiceChanged event is pushed to
// every client, followed by a refreshed status once the burst settles.
func (s *Server) Notify(_ context.Context, kind, payload string) error {
	if kind != notify.ServiceChanged {
		return nil
	}
	s.io.Emit(EventPushActiveService, ActiveService{Service: payload})
	s.pushes.Trigger()

	log.Debug().Str("service", payload).Int("clients", s.ClientCount()).Msg("Broadcast active service")
	return nil
}

// BroadcastStatus sends the current status to all connected clients.
func (s *Server) BroadcastStatus() {
	s.io.Emit(EventPushStatus, s.status.Current(s.ctx))
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops pending pushes and closes the Socket.io server.
func (s *Server) Close() error {
	s.cancel()
	s.pushes.Stop()
	s.io.Close(nil)
	return nil
}
