package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_SetScoreOverwrites(t *testing.T) {
	s := NewStore()
	s.SetScore("alice", json.RawMessage(`5`))
	s.SetScore("bob", json.RawMessage(`"3"`))
	s.SetScore("alice", json.RawMessage(`7`))

	snap := s.Snapshot()
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, `7`, string(snap["alice"]))
	assert.Equal(t, `"3"`, string(snap["bob"]))
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	score := json.RawMessage(`5`)
	s.SetScore("alice", score)
	score[0] = '9' // 调用方修改原切片不影响存储

	snap := s.Snapshot()
	s.SetScore("alice", json.RawMessage(`6`))
	s.SetScore("bob", json.RawMessage(`1`))
	snap["carol"] = json.RawMessage(`2`)

	assert.Equal(t, `5`, string(snap["alice"]))
	assert.NotContains(t, snap, "bob")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, `6`, string(s.Snapshot()["alice"]))
}

func TestStore_EmptySnapshot(t *testing.T) {
	snap := NewStore().Snapshot()
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}
