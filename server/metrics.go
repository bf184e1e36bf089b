package server

import (
	"sync/atomic"
)

// RelayMetrics 记录中继运行期的关键指标（用于监控与调试）
type RelayMetrics struct {
	UpdatesAccepted  int64 // 被接受的更新数
	MalformedDropped int64 // 因解析失败被丢弃的消息数
	Broadcasts       int64 // 广播轮数
	SendsOK          int64 // 成功投递的快照数
	SendFailures     int64 // 投递失败数（队列满或连接已关闭）
	Connects         int64
	Disconnects      int64
}

func (m *RelayMetrics) IncAccepted()    { atomic.AddInt64(&m.UpdatesAccepted, 1) }
func (m *RelayMetrics) IncMalformed()   { atomic.AddInt64(&m.MalformedDropped, 1) }
func (m *RelayMetrics) IncBroadcast()   { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *RelayMetrics) IncSendOK()      { atomic.AddInt64(&m.SendsOK, 1) }
func (m *RelayMetrics) IncSendFailure() { atomic.AddInt64(&m.SendFailures, 1) }
func (m *RelayMetrics) IncConnect()     { atomic.AddInt64(&m.Connects, 1) }
func (m *RelayMetrics) IncDisconnect()  { atomic.AddInt64(&m.Disconnects, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RelayMetrics) Snapshot() map[string]any {
	return map[string]any{
		"updates_accepted":  atomic.LoadInt64(&m.UpdatesAccepted),
		"malformed_dropped": atomic.LoadInt64(&m.MalformedDropped),
		"broadcasts":        atomic.LoadInt64(&m.Broadcasts),
		"sends_ok":          atomic.LoadInt64(&m.SendsOK),
		"send_failures":     atomic.LoadInt64(&m.SendFailures),
		"connects":          atomic.LoadInt64(&m.Connects),
		"disconnects":       atomic.LoadInt64(&m.Disconnects),
	}
}
