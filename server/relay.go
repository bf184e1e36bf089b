package server

import (
	"sync"

	"scoresync/protocol"
)

// Relay 广播中继：单房间、全量快照广播
// 一把互斥锁串行化 修改存储 → 扇出广播，等价于单线程事件循环
type Relay struct {
	mu       sync.Mutex
	registry *Registry
	store    *Store

	metrics *RelayMetrics
}

// NewRelay 使用注入的注册表与状态存储创建中继；nil 时创建空实例
func NewRelay(reg *Registry, store *Store) *Relay {
	if reg == nil {
		reg = NewRegistry()
	}
	if store == nil {
		store = NewStore()
	}
	return &Relay{
		registry: reg,
		store:    store,
		metrics:  &RelayMetrics{},
	}
}

// Handle 处理某连接上的一条入站原始消息
// 解析失败：记录日志并丢弃，不广播、不关闭连接，返回包装了 protocol.ErrMalformed 的错误
func (r *Relay) Handle(c Conn, data []byte) error {
	upd, err := protocol.ParseUpdate(data)
	if err != nil {
		r.metrics.IncMalformed()
		Log.Warnw("dropping malformed message", "conn", c.ID(), "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 最近一次以该 ID 发送更新的连接拥有该 ID
	r.registry.Register(upd.PlayerID, c)
	r.store.SetScore(upd.PlayerID, upd.Score)
	r.metrics.IncAccepted()

	r.broadcastLocked()
	return nil
}

// broadcastLocked 将当前快照发送给所有已注册连接（含发送者）
// 单个接收方失败不影响其余接收方
func (r *Relay) broadcastLocked() {
	payload, err := protocol.EncodeSnapshot(r.store.Snapshot())
	if err != nil {
		Log.Errorw("encode snapshot", "error", err)
		return
	}
	r.metrics.IncBroadcast()

	for c := range r.registry.AllHandles() {
		if err := c.Send(payload); err != nil {
			r.metrics.IncSendFailure()
			Log.Warnw("broadcast send failed", "conn", c.ID(), "error", err)
			continue
		}
		r.metrics.IncSendOK()
	}
}

// Connect 记录新连接建立（仅用于日志与指标，连接在首次更新时才注册）
func (r *Relay) Connect(c Conn) {
	r.metrics.IncConnect()
	Log.Infow("client connected", "conn", c.ID())
}

// Disconnect 连接关闭：移除映射到该连接的所有 ID，分数保留
func (r *Relay) Disconnect(c Conn) {
	r.mu.Lock()
	ids := r.registry.UnregisterConn(c)
	remaining := r.registry.ConnCount()
	r.mu.Unlock()

	r.metrics.IncDisconnect()
	Log.Infow("client disconnected", "conn", c.ID(), "players", ids, "connections", remaining)
}

// Snapshot 返回当前共享状态副本
func (r *Relay) Snapshot() protocol.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Snapshot()
}

// Stats 返回玩家数与已注册连接数
func (r *Relay) Stats() (players, connections int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Len(), r.registry.ConnCount()
}

// Metrics 运行指标
func (r *Relay) Metrics() *RelayMetrics {
	return r.metrics
}
