package logging

import (
	"io"
	"log/slog"
	"os"
)

// LevelTrace sits below debug for per-poll and rejected-request chatter.
const LevelTrace = slog.LevelDebug - 4

type Config struct {
	Level string `json:"level"` // trace, debug, info, warn, error
	JSON  bool   `json:"json"`  // true for K8s, false for local dev
}

func ParseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	if cfg.JSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func Setup(cfg Config) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, cfg)))
}
