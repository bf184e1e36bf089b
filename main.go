package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"scoresync/client"
	"scoresync/protocol"
	"scoresync/server"
)

// scoresync 入口：serve 启动中继；watch / publish 为命令行客户端
func main() {
	// .env 可选，缺失时直接使用环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	def := server.DefaultConfig()
	logFlags := []cli.Flag{
		&cli.StringFlag{Name: "log-file", Usage: "log file path (empty = stderr)", Sources: cli.EnvVars("SCORESYNC_LOG_FILE")},
		&cli.StringFlag{Name: "log-level", Value: def.LogLevel, Usage: "debug, info, warn or error", Sources: cli.EnvVars("SCORESYNC_LOG_LEVEL")},
	}
	urlFlag := &cli.StringFlag{
		Name:    "url",
		Value:   "ws://localhost:8080/ws",
		Usage:   "relay websocket url",
		Sources: cli.EnvVars("SCORESYNC_URL"),
	}

	return &cli.Command{
		Name:  "scoresync",
		Usage: "real-time player score relay over WebSocket",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the relay server",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "addr", Value: def.Addr, Usage: "listen address", Sources: cli.EnvVars("SCORESYNC_ADDR")},
					&cli.StringFlag{Name: "path", Value: def.Path, Usage: "websocket endpoint path", Sources: cli.EnvVars("SCORESYNC_PATH")},
					&cli.IntFlag{Name: "send-buffer", Value: def.SendBuffer, Usage: "per-connection outbound queue size", Sources: cli.EnvVars("SCORESYNC_SEND_BUFFER")},
					&cli.Int64Flag{Name: "read-limit", Value: def.ReadLimit, Usage: "max inbound message size in bytes", Sources: cli.EnvVars("SCORESYNC_READ_LIMIT")},
					&cli.StringSliceFlag{Name: "allowed-origin", Usage: "allowed Origin header (repeatable, empty = any)", Sources: cli.EnvVars("SCORESYNC_ALLOWED_ORIGINS")},
				}, logFlags...),
				Action: runServe,
			},
			{
				Name:   "watch",
				Usage:  "print every snapshot broadcast by the relay",
				Flags:  append([]cli.Flag{urlFlag}, logFlags...),
				Action: runWatch,
			},
			{
				Name:      "publish",
				Usage:     "send one score update and print the resulting snapshot",
				ArgsUsage: "<playerId> <score>",
				Flags: append([]cli.Flag{
					urlFlag,
					&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "how long to wait for the broadcast"},
				}, logFlags...),
				Action: runPublish,
			},
		},
	}
}

func initLogger(cmd *cli.Command) error {
	return server.InitLogger(cmd.String("log-file"), cmd.String("log-level"))
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	if err := initLogger(cmd); err != nil {
		return err
	}
	defer server.SyncLogger()

	cfg := server.DefaultConfig()
	cfg.Addr = cmd.String("addr")
	cfg.Path = cmd.String("path")
	cfg.SendBuffer = cmd.Int("send-buffer")
	cfg.ReadLimit = cmd.Int64("read-limit")
	cfg.AllowedOrigins = cmd.StringSlice("allowed-origin")
	cfg.LogFile = cmd.String("log-file")
	cfg.LogLevel = cmd.String("log-level")

	srv, err := server.New(cfg, nil)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	if err := initLogger(cmd); err != nil {
		return err
	}
	defer server.SyncLogger()

	agent := client.New(cmd.String("url"),
		client.WithLogger(server.Log),
		client.OnSnapshot(func(s protocol.Snapshot) {
			printSnapshot(s)
		}),
	)
	if err := agent.Connect(ctx); err != nil {
		return err
	}
	defer agent.Close()

	select {
	case <-ctx.Done():
	case <-agent.Done():
	}
	return nil
}

func runPublish(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return cli.Exit("usage: scoresync publish <playerId> <score>", 2)
	}
	if err := initLogger(cmd); err != nil {
		return err
	}
	defer server.SyncLogger()

	playerID, score := cmd.Args().Get(0), scoreArg(cmd.Args().Get(1))

	got := make(chan protocol.Snapshot, 1)
	agent := client.New(cmd.String("url"),
		client.WithLogger(server.Log),
		client.OnSnapshot(func(s protocol.Snapshot) {
			select {
			case got <- s:
			default:
			}
		}),
	)
	if err := agent.Connect(ctx); err != nil {
		return err
	}
	defer agent.Close()

	if err := agent.Publish(playerID, score); err != nil {
		return err
	}

	select {
	case s := <-got:
		printSnapshot(s)
		return nil
	case <-agent.Done():
		return errors.New("connection closed before broadcast arrived")
	case <-time.After(cmd.Duration("timeout")):
		return errors.New("timed out waiting for broadcast")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scoreArg 合法 JSON 字面量（如 5、"5"、true）原样发送，其余按字符串发送
func scoreArg(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

func printSnapshot(s protocol.Snapshot) {
	data, err := protocol.EncodeSnapshot(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(data))
}
