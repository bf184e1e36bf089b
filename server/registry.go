package server

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Conn 一条活跃连接的发送端句柄；生命周期由传输层负责
type Conn interface {
	ID() string
	// Send 非阻塞投递，失败只影响该接收方
	Send(data []byte) error
}

// Registry 玩家 ID → 连接句柄（同一连接可对应多个 ID）
// 不做并发保护，由 Relay 的互斥锁串行化访问
type Registry struct {
	conns *orderedmap.OrderedMap[string, Conn]
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{conns: orderedmap.New[string, Conn]()}
}

// Register 关联 id 与连接，覆盖旧关联；迭代位置保持首次注册时的位置
func (r *Registry) Register(id string, c Conn) {
	r.conns.Set(id, c)
}

// Unregister 移除单个 id 的关联
func (r *Registry) Unregister(id string) bool {
	_, ok := r.conns.Delete(id)
	return ok
}

// UnregisterConn 移除当前映射到 c 的全部 id，返回被移除的 id（按插入顺序）
func (r *Registry) UnregisterConn(c Conn) []string {
	var ids []string
	for pair := r.conns.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == c {
			ids = append(ids, pair.Key)
		}
	}
	for _, id := range ids {
		r.conns.Delete(id)
	}
	return ids
}

// Lookup 返回 id 当前关联的连接
func (r *Registry) Lookup(id string) (Conn, bool) {
	return r.conns.Get(id)
}

// AllHandles 按插入顺序惰性遍历所有连接，同一连接只产出一次
func (r *Registry) AllHandles() iter.Seq[Conn] {
	return func(yield func(Conn) bool) {
		seen := make(map[Conn]struct{}, r.conns.Len())
		for pair := r.conns.Oldest(); pair != nil; pair = pair.Next() {
			if _, dup := seen[pair.Value]; dup {
				continue
			}
			seen[pair.Value] = struct{}{}
			if !yield(pair.Value) {
				return
			}
		}
	}
}

// IDs 按插入顺序返回所有已注册 id
func (r *Registry) IDs() []string {
	ids := make([]string, 0, r.conns.Len())
	for pair := r.conns.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Len 已注册 id 数
func (r *Registry) Len() int {
	return r.conns.Len()
}

// ConnCount 不同连接数
func (r *Registry) ConnCount() int {
	n := 0
	for range r.AllHandles() {
		n++
	}
	return n
}
