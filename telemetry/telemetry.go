// SPDX-License-Identifier: MIT

// Package telemetry implements the Telemetry collaborator spec.md §9 asks
// for in place of the original's macro-based ALC_RX_WARN/ALC_RX_DEBUG
// logging: leveled counters plus a structured logger, constructed once per
// session rather than kept as process-wide mutable globals.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

// Config is the session-scoped replacement for the original's global
// debug/trace flags (spec.md §9).
type Config struct {
	// Writer receives log output. Defaults to os.Stderr.
	Writer io.Writer
	// Level sets the minimum log level. Defaults to slog.LevelInfo.
	Level slog.Level
	// Registerer receives the counter vectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Telemetry is the leveled-counter + logging collaborator every
// reassembler and the joiner report through.
type Telemetry struct {
	log      *slog.Logger
	counters *Counters
}

// New builds a Telemetry from cfg, filling in defaults for zero fields.
func New(cfg Config) *Telemetry {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	handler := tint.NewHandler(cfg.Writer, &tint.Options{Level: cfg.Level})
	return &Telemetry{
		log:      slog.New(handler),
		counters: newCounters(cfg.Registerer),
	}
}

// Logger returns the structured logger for this session.
func (t *Telemetry) Logger() *slog.Logger { return t.log }

// Counters returns the leveled packet/object counters for this session.
func (t *Telemetry) Counters() *Counters { return t.counters }

// Warnf logs at warn level and increments the matching counter, mirroring
// the original's ALC_RX_WARN macro plus an observable metric.
func (t *Telemetry) Warnf(ctx context.Context, counter string, msg string, args ...any) {
	t.log.WarnContext(ctx, msg, args...)
	t.counters.Inc(counter)
}

// Debugf logs at debug level only; debug-path events are not counted,
// matching the original's debug/trace macros which existed purely for
// human inspection.
func (t *Telemetry) Debugf(ctx context.Context, msg string, args ...any) {
	t.log.DebugContext(ctx, msg, args...)
}
