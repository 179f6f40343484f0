package radio

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// LogSink writes every uplink to the log and always succeeds.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Deliver(ctx context.Context, up Uplink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.Info("uplink", "component", "radio", "sink", SinkLog,
		"dev_addr", up.DevAddr, "fcnt", up.FCnt, "fport", up.FPort,
		"payload", hex.EncodeToString(up.Payload), "phy_payload", hex.EncodeToString(up.PHYPayload))
	return nil
}

func (l *LogSink) Close() error { return nil }
