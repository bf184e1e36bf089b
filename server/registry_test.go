package server

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	id       string
	received [][]byte
	sendErr  error
	mu       sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) getReceived() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.received))
	for i, b := range m.received {
		out[i] = string(b)
	}
	return out
}

var errDead = errors.New("dead connection")

func handles(r *Registry) []Conn {
	return slices.Collect(r.AllHandles())
}

func TestRegistry_InsertionOrder(t *testing.T) {
	r := NewRegistry()
	a, b, c := &mockConn{id: "a"}, &mockConn{id: "b"}, &mockConn{id: "c"}
	r.Register("carol", c)
	r.Register("alice", a)
	r.Register("bob", b)

	assert.Equal(t, []Conn{c, a, b}, handles(r))
	assert.Equal(t, []string{"carol", "alice", "bob"}, r.IDs())

	// 可重复遍历
	assert.Equal(t, handles(r), handles(r))
}

func TestRegistry_Overwrite(t *testing.T) {
	r := NewRegistry()
	first, second := &mockConn{id: "first"}, &mockConn{id: "second"}

	r.Register("alice", first)
	r.Register("alice", second)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []Conn{second}, handles(r))
	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistry_ManyIDsOneConn(t *testing.T) {
	r := NewRegistry()
	shared, other := &mockConn{id: "shared"}, &mockConn{id: "other"}
	r.Register("alice", shared)
	r.Register("bob", other)
	r.Register("carol", shared)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.ConnCount())
	assert.Equal(t, []Conn{shared, other}, handles(r))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	a := &mockConn{id: "a"}
	r.Register("alice", a)

	assert.True(t, r.Unregister("alice"))
	assert.False(t, r.Unregister("alice"))
	assert.Empty(t, handles(r))
}

func TestRegistry_UnregisterConn(t *testing.T) {
	r := NewRegistry()
	shared, other := &mockConn{id: "shared"}, &mockConn{id: "other"}
	r.Register("alice", shared)
	r.Register("bob", other)
	r.Register("carol", shared)

	removed := r.UnregisterConn(shared)
	assert.Equal(t, []string{"alice", "carol"}, removed)
	assert.Equal(t, []string{"bob"}, r.IDs())
	assert.Equal(t, []Conn{other}, handles(r))

	assert.Empty(t, r.UnregisterConn(shared))
}

func TestRegistry_UnregisterConnKeepsReassignedID(t *testing.T) {
	r := NewRegistry()
	old, cur := &mockConn{id: "old"}, &mockConn{id: "new"}
	r.Register("alice", old)
	r.Register("alice", cur)

	// 旧连接断开时不应移除已被新连接接管的 ID
	assert.Empty(t, r.UnregisterConn(old))
	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, cur, got)
}

func TestRegistry_AllHandlesEarlyStop(t *testing.T) {
	r := NewRegistry()
	r.Register("a", &mockConn{id: "a"})
	r.Register("b", &mockConn{id: "b"})

	n := 0
	for range r.AllHandles() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
