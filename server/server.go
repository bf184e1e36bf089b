package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const shutdownTimeout = 10 * time.Second

// Server HTTP + WebSocket 入口，持有唯一的中继实例
type Server struct {
	cfg      Config
	relay    *Relay
	upgrader websocket.Upgrader

	// 已劫持的连接不受 http.Server.Shutdown 管理，需自行跟踪
	connMu   sync.Mutex
	conns    map[*ClientConn]struct{}
	draining bool
}

// New 校验配置并创建服务；relay 为 nil 时创建新的空中继
func New(cfg Config, relay *Relay) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if relay == nil {
		relay = NewRelay(nil, nil)
	}
	s := &Server{cfg: cfg, relay: relay, conns: make(map[*ClientConn]struct{})}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s, nil
}

// Relay 返回服务使用的中继
func (s *Server) Relay() *Relay { return s.relay }

// Handler 路由：WebSocket 端点 + 管理与监控接口
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.HandleWS)
	mux.HandleFunc("/state", s.HandleState)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleWS WebSocket 接入，无子协议协商、无鉴权
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClientConn(ws, s.cfg.SendBuffer)
	if !s.track(client) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	s.relay.Connect(client)

	go client.writePump()
	go func() {
		client.readPump(s.relay, s.cfg.ReadLimit)
		s.untrack(client)
	}()
}

func (s *Server) track(c *ClientConn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.draining {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *ClientConn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

// ActiveConnections 当前仍在读写的 WebSocket 连接数
func (s *Server) ActiveConnections() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

// CloseConnections 拒绝新连接，并关闭所有活跃连接（写协程发送关闭帧）
func (s *Server) CloseConnections() {
	s.connMu.Lock()
	s.draining = true
	conns := make([]*ClientConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	if len(conns) > 0 {
		Log.Infow("closed websocket connections", "count", len(conns))
	}
}

// Run 启动监听，ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.CloseConnections)

	errCh := make(chan error, 1)
	go func() {
		Log.Infof("scoresync listening on %s (ws path %s)", s.cfg.Addr, s.cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
