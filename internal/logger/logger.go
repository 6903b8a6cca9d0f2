package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"support-lab/internal/config"
)

// 全局 logger，Init 与 Get 可能并发访问
var current atomic.Pointer[slog.Logger]

// Init 按配置初始化全局 slog（console 用 tint 彩色输出，json 用标准 JSONHandler）
func Init(cfg config.LoggerConfig) error {
	writer, err := openWriter(cfg.OutputPath)
	if err != nil {
		return err
	}

	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	} else {
		handler = newTintHandler(writer, level)
	}

	l := slog.New(handler)
	current.Store(l)
	slog.SetDefault(l)
	return nil
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriter(path string) (io.Writer, error) {
	switch strings.ToLower(path) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	}
}

func newTintHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Get 未初始化时退回到 stdout 的 tint 输出
func Get() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	// 并发首次调用只有一个默认实例生效
	current.CompareAndSwap(nil, slog.New(newTintHandler(os.Stdout, slog.LevelInfo)))
	return current.Load()
}

func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}
