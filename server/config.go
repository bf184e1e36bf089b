package server

import (
	"errors"
	"fmt"
	"strings"
)

// Config 中继服务配置
type Config struct {
	Addr     string // 监听地址，如 :8080
	Path     string // WebSocket 端点路径
	LogFile  string // 为空时输出到 stderr
	LogLevel string

	SendBuffer int   // 每个连接的发送队列容量
	ReadLimit  int64 // 单条入站消息最大字节数

	// AllowedOrigins 为空时允许所有来源（演示环境）
	AllowedOrigins []string
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Addr:       ":8080",
		Path:       "/ws",
		LogLevel:   "info",
		SendBuffer: 64,
		ReadLimit:  1 << 20, // 1MB
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with /", c.Path))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, fmt.Errorf("read limit must be positive, got %d", c.ReadLimit))
	}
	return errors.Join(errs...)
}

func (c Config) originAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
