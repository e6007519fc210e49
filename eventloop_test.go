package goreactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// Drives Run() end-to-end over a real socketpair: a message sent by the
// test harness should trigger OnReadable, and Stop() should make Run
// return promptly instead of blocking forever in Wait(-1).
func TestEventLoopDispatchesReadableAndStops(t *testing.T) {
	r := newTestReactor(t)
	local, peer := socketpair(t)

	received := make(chan string, 1)
	c, err := NewConn(r, local, &funcHandler{
		onReadable: func(c *Conn) {
			buf, state := c.Read(64)
			if state == ReadOK {
				received <- string(buf)
			}
		},
	})
	require.NoError(t, err)
	_ = c

	done := make(chan error, 1)
	go func() { done <- r.Run(nil) }()

	_, err = unix.Write(peer, []byte("ping"))
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "ping", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnReadable dispatch")
	}

	r.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// Run must also exit when its context is canceled, without the caller
// having to call Stop directly.
func TestEventLoopStopsOnContextCancel(t *testing.T) {
	r := newTestReactor(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

// A foreign fd (no Conn wrapping it) must be registered and its
// callback invoked on readability, exercising the secondary registry
// of spec.md §3.
func TestForeignFdCallback(t *testing.T) {
	r := newTestReactor(t)
	local, peer := socketpair(t)
	t.Cleanup(func() { unix.Close(local) })

	fired := make(chan struct{}, 1)
	r.SetOtherFds(map[int]ForeignFdFunc{
		local: func() {
			var buf [64]byte
			unix.Read(local, buf[:])
			fired <- struct{}{}
		},
	})

	done := make(chan error, 1)
	go func() { done <- r.Run(nil) }()

	_, err := unix.Write(peer, []byte("x"))
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("foreign fd callback never fired")
	}

	r.Stop()
	<-done
}

// Scenario 6: the portable poll backend must offer the same
// register/modify/wait semantics as epoll over the same socketpair.
func TestPollBackendReadinessParity(t *testing.T) {
	be, err := newPollBackend()
	require.NoError(t, err)
	defer be.Close()

	local, peer := socketpair(t)

	require.NoError(t, be.Register(local, EventRead))
	_, err = unix.Write(peer, []byte("hi"))
	require.NoError(t, err)

	events, err := be.Wait(16, 1000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, local, events[0].Fd)
	assert.True(t, events[0].Mask.has(EventRead))

	require.NoError(t, be.Modify(local, 0))
	require.NoError(t, be.Unregister(local))
	assert.ErrorIs(t, be.Unregister(local), ErrNotRegistered)
}
