// Package logger provides structured logging for the storage engine
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with engine-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "relstore").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info starts an info event carrying msg; nothing is written until the
// caller sends the returned event
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug starts a debug event carrying msg; nothing is written until the
// caller sends the returned event
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn starts a warning event carrying msg; nothing is written until
// the caller sends the returned event
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error starts an error event carrying msg; nothing is written until
// the caller sends the returned event
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal starts a fatal event carrying msg; sending the returned event
// writes it and exits the process
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// DbLogger returns a logger scoped to a storage-engine component
// (page, buffer, btree, hashindex, wal, query, maintenance).
func (l *Logger) DbLogger(component string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", component).
			Logger(),
	}
}

// LogDbOperation logs a completed storage operation with structured fields.
func (l *Logger) LogDbOperation(operation string, duration time.Duration, recordCount int, err error) {
	event := l.zlog.Debug().
		Str("operation", operation).
		Dur("duration_ms", duration).
		Int("record_count", recordCount)

	if err != nil {
		event = l.zlog.Error().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("storage operation completed")
}

// LogPageFault logs a buffer-pool miss that required a disk read or an
// eviction to satisfy.
func (l *Logger) LogPageFault(pageID int, evicted bool) {
	l.zlog.Debug().
		Str("component", "buffer").
		Int("page_id", pageID).
		Bool("evicted_victim", evicted).
		Msg("page fault")
}

// LogWALAppend logs one write-ahead log record being appended.
func (l *Logger) LogWALAppend(lsn uint64, txnID string, op string) {
	l.zlog.Debug().
		Str("component", "wal").
		Uint64("lsn", lsn).
		Str("txn_id", txnID).
		Str("op", op).
		Msg("wal append")
}

// LogRecovery logs the outcome of a crash-recovery pass.
func (l *Logger) LogRecovery(totalRecords, committedTxns, loserTxns int) {
	l.zlog.Info().
		Str("component", "wal").
		Int("total_records", totalRecords).
		Int("committed_txns", committedTxns).
		Int("loser_txns", loserTxns).
		Msg("recovery complete")
}

// LogMaintenanceRun logs a maintenance coordinator task completing.
func (l *Logger) LogMaintenanceRun(indexName string, fragmentationBefore float64, duration time.Duration) {
	l.zlog.Info().
		Str("component", "maintenance").
		Str("index", indexName).
		Float64("fragmentation_before", fragmentationBefore).
		Dur("duration_ms", duration).
		Msg("index maintenance completed")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
