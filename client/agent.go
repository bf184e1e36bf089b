// Package client 实现客户端同步代理：维护一条到中继的连接，缓存最新快照，并发布本地更新
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scoresync/protocol"
)

const writeWait = 10 * time.Second

// State 连接状态：Disconnected → Connecting → Open → Closed
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option 代理配置项
type Option func(*Agent)

// WithLogger 指定日志
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Agent) { a.log = l }
}

// WithDialer 指定 WebSocket 拨号器
func WithDialer(d *websocket.Dialer) Option {
	return func(a *Agent) { a.dialer = d }
}

// OnSnapshot 每次缓存被替换后回调（在读协程中执行）
func OnSnapshot(fn func(protocol.Snapshot)) Option {
	return func(a *Agent) { a.onSnapshot = fn }
}

// Agent 客户端同步代理
type Agent struct {
	url        string
	dialer     *websocket.Dialer
	log        *zap.SugaredLogger
	onSnapshot func(protocol.Snapshot)

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	snapshot protocol.Snapshot

	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

// New 创建代理，url 形如 ws://localhost:8080/ws
func New(url string, opts ...Option) *Agent {
	a := &Agent{
		url:      url,
		dialer:   websocket.DefaultDialer,
		log:      zap.NewNop().Sugar(),
		snapshot: protocol.Snapshot{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect 建立连接并启动读协程；只能从 Disconnected 状态调用
func (a *Agent) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.state != Disconnected {
		st := a.state
		a.mu.Unlock()
		return fmt.Errorf("connect: agent is %s", st)
	}
	a.state = Connecting
	a.mu.Unlock()

	conn, _, err := a.dialer.DialContext(ctx, a.url, nil)
	if err != nil {
		a.mu.Lock()
		if a.state == Connecting {
			a.state = Disconnected
		}
		a.mu.Unlock()
		return fmt.Errorf("dial %s: %w", a.url, err)
	}

	a.mu.Lock()
	if a.state != Connecting {
		// Close 在拨号期间被调用
		a.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("connect: agent closed while dialing")
	}
	a.conn = conn
	a.state = Open
	a.mu.Unlock()

	a.log.Infow("connected", "url", a.url)
	go a.readLoop(conn)
	return nil
}

// State 当前状态
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot 最新缓存快照的副本
func (a *Agent) Snapshot() protocol.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot.Clone()
}

// Done 读协程退出后关闭
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// Publish 发送 {"playerId","score"}；未处于 Open 时静默丢弃
func (a *Agent) Publish(playerID string, score any) error {
	a.mu.Lock()
	conn, st := a.conn, a.state
	a.mu.Unlock()
	if st != Open || conn == nil {
		a.log.Debugw("publish dropped, not open", "state", st, "player", playerID)
		return nil
	}

	data, err := protocol.EncodeUpdate(playerID, score)
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close 主动断开；可重复调用
func (a *Agent) Close() error {
	a.mu.Lock()
	conn, st := a.conn, a.state
	a.state = Closed
	a.mu.Unlock()

	if st == Closed {
		return nil
	}
	if conn == nil {
		// 从未连接成功，没有读协程
		a.closeDone()
		return nil
	}

	a.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	a.writeMu.Unlock()
	return conn.Close()
}

// readLoop 每条入站消息解析为快照并整体替换缓存；解析失败保留旧快照
func (a *Agent) readLoop(conn *websocket.Conn) {
	defer func() {
		a.setState(Closed)
		_ = conn.Close()
		a.closeDone()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				a.log.Warnw("read error", "error", err)
			}
			return
		}

		snap, err := protocol.ParseSnapshot(data)
		if err != nil {
			a.log.Warnw("ignoring malformed snapshot", "error", err)
			continue
		}

		a.mu.Lock()
		a.snapshot = snap
		a.mu.Unlock()

		if a.onSnapshot != nil {
			a.onSnapshot(snap.Clone())
		}
	}
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) closeDone() {
	a.doneOnce.Do(func() { close(a.done) })
}
