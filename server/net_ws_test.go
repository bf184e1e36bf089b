package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientConn_SendQueue(t *testing.T) {
	c := &ClientConn{id: "c1", send: make(chan []byte, 1)}

	assert.NoError(t, c.Send([]byte("one")))
	assert.ErrorIs(t, c.Send([]byte("two")), ErrSendQueueFull)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send([]byte("three")), ErrConnClosed)

	// 关闭前已入队的消息仍可被写协程取出
	msg, ok := <-c.send
	assert.True(t, ok)
	assert.Equal(t, "one", string(msg))
	_, ok = <-c.send
	assert.False(t, ok)
}
