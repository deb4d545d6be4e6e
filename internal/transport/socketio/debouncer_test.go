package socketio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPushDebouncer_BurstCollapsesToOne(t *testing.T) {
	var calls int32
	d := NewPushDebouncer(50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPushDebouncer_SeparateWindows(t *testing.T) {
	var calls int32
	d := NewPushDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(120 * time.Millisecond)
	d.Trigger()
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPushDebouncer_Stop(t *testing.T) {
	var calls int32
	d := NewPushDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, atomic.LoadInt32(&calls))
}
