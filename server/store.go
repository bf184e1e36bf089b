package server

import (
	"bytes"
	"encoding/json"

	"scoresync/protocol"
)

// Store 玩家 ID → 最新分数（原样保存，不校验）
// 不做并发保护，由 Relay 的互斥锁串行化访问
type Store struct {
	scores map[string]json.RawMessage
}

// NewStore 创建空状态存储
func NewStore() *Store {
	return &Store{scores: make(map[string]json.RawMessage)}
}

// SetScore 插入或覆盖分数
func (s *Store) SetScore(id string, score json.RawMessage) {
	s.scores[id] = bytes.Clone(score)
}

// Snapshot 返回全量副本，后续修改不会影响已返回的快照
func (s *Store) Snapshot() protocol.Snapshot {
	return protocol.Snapshot(s.scores).Clone()
}

// Len 玩家数
func (s *Store) Len() int {
	return len(s.scores)
}
