// Package protocol 定义客户端与中继之间的 JSON 文本协议
//
// 客户端 → 服务端：{"playerId":"alice","score":5}
// 服务端 → 客户端：完整状态快照 {"alice":5,"bob":3}，无信封、无类型标记、无序列号
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformed 入站消息无法解析或缺少必填字段
var ErrMalformed = errors.New("malformed message")

// Update 客户端上报的一次分数更新
// Score 原样透传（数字、字符串或任意 JSON 值），中继不做解释
type Update struct {
	PlayerID string          `json:"playerId"`
	Score    json.RawMessage `json:"score"`
}

// Snapshot 全量共享状态：玩家 ID → 分数
type Snapshot map[string]json.RawMessage

// Clone 返回独立副本
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, score := range s {
		out[id] = bytes.Clone(score)
	}
	return out
}

// ParseUpdate 解析入站更新消息
// 消息必须是合法 UTF-8；字段名大小写敏感，playerId 必须为非空字符串，score 必须存在
func ParseUpdate(data []byte) (Update, error) {
	// score 原样透传，非法字节会污染之后的每一次广播
	if !utf8.Valid(data) {
		return Update{}, fmt.Errorf("%w: invalid UTF-8", ErrMalformed)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawID, ok := fields["playerId"]
	if !ok {
		return Update{}, fmt.Errorf("%w: missing playerId", ErrMalformed)
	}
	var id string
	if err := json.Unmarshal(rawID, &id); err != nil || id == "" {
		return Update{}, fmt.Errorf("%w: playerId must be a non-empty string", ErrMalformed)
	}

	score, ok := fields["score"]
	if !ok || len(score) == 0 {
		return Update{}, fmt.Errorf("%w: missing score", ErrMalformed)
	}
	return Update{PlayerID: id, Score: score}, nil
}

// EncodeUpdate 序列化一次更新；score 可以是任意可 JSON 编码的值
func EncodeUpdate(playerID string, score any) ([]byte, error) {
	var raw json.RawMessage
	switch v := score.(type) {
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode score: %w", err)
		}
		raw = b
	}
	return json.Marshal(Update{PlayerID: playerID, Score: raw})
}

// EncodeSnapshot 序列化快照（键按字典序输出，便于测试比对）
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	return json.Marshal(s)
}

// ParseSnapshot 解析服务端广播的快照，必须是 JSON 对象
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if s == nil {
		// "null" 不是合法快照
		return nil, fmt.Errorf("%w: snapshot is not an object", ErrMalformed)
	}
	return s, nil
}
