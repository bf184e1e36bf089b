package server

import (
	"encoding/json"
	"net/http"

	"scoresync/protocol"
)

// HandleState 输出当前共享状态快照
// GET /state
func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	payload, err := protocol.EncodeSnapshot(s.relay.Snapshot())
	if err != nil {
		http.Error(w, "encode snapshot", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// HandleMetrics 输出中继运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	players, conns := s.relay.Stats()
	payload := map[string]any{
		"players":     players,
		"connections": conns,
		"metrics":     s.relay.Metrics().Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
