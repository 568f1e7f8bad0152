// Package mlog provides the injectable logging contract the engine calls
// against (§6.4), plus a default zerolog-backed sink so embedders get
// structured logging for free without the core depending on zerolog
// directly from its call sites.
package mlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors the severities the engine checks before formatting a
// message, per the "engine MUST check is_enabled before formatting" rule.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// Logger is the consumed interface from §6.4: IsEnabled guards formatting,
// Log accepts structured key/value pairs. Engine packages take a Logger,
// never a concrete library, so embedders can wire any sink.
type Logger interface {
	IsEnabled(level Level) bool
	Log(level Level, msg string, kv ...any)
}

// Nop is a Logger that discards everything; it is the zero value used when
// a caller does not wire one in, so engine code never needs a nil check.
type Nop struct{}

func (Nop) IsEnabled(Level) bool      { return false }
func (Nop) Log(Level, string, ...any) {}

// Config configures the default zerolog-backed sink.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Zerologger adapts github.com/rs/zerolog to the Logger contract, the way
// the teacher's pkg/log wraps zerolog behind Init/WithComponent helpers.
type Zerologger struct {
	logger zerolog.Logger
	level  Level
}

// New builds a Zerologger from Config. Output defaults to os.Stdout.
func New(cfg Config) *Zerologger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var zl zerolog.Logger
	if cfg.JSONOutput {
		zl = zerolog.New(out).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	return &Zerologger{logger: zl, level: cfg.Level}
}

func (z *Zerologger) IsEnabled(level Level) bool {
	return level >= z.level
}

func (z *Zerologger) Log(level Level, msg string, kv ...any) {
	if !z.IsEnabled(level) {
		return
	}
	ev := z.event(level)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

func (z *Zerologger) event(level Level) *zerolog.Event {
	switch level {
	case DebugLevel:
		return z.logger.Debug()
	case WarnLevel:
		return z.logger.Warn()
	case ErrorLevel:
		return z.logger.Error()
	default:
		return z.logger.Info()
	}
}

// WithComponent returns a Zerologger scoped to a component name, mirroring
// the teacher's WithComponent/WithNodeID/WithServiceID/WithTaskID helpers.
func (z *Zerologger) WithComponent(component string) *Zerologger {
	return &Zerologger{logger: z.logger.With().Str("component", component).Logger(), level: z.level}
}

// WithStore scopes a logger to a store directory, used by mstore/mpool.
func (z *Zerologger) WithStore(path string) *Zerologger {
	return &Zerologger{logger: z.logger.With().Str("store", path).Logger(), level: z.level}
}

// WithTxID scopes a logger to a WAL transaction id.
func (z *Zerologger) WithTxID(txID uint64) *Zerologger {
	return &Zerologger{logger: z.logger.With().Uint64("tx_id", txID).Logger(), level: z.level}
}

// WithQueryID scopes a logger to a SPARQL query execution id.
func (z *Zerologger) WithQueryID(queryID string) *Zerologger {
	return &Zerologger{logger: z.logger.With().Str("query_id", queryID).Logger(), level: z.level}
}
