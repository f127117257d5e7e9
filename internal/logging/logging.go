package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogseq "github.com/sokkalf/slog-seq"
)

// Console formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

type contextKey string

// RequestIDKey is the context key for the HTTP request id
const RequestIDKey contextKey = "request_id"

// Options configures SetupLogger.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // text or json
	SeqURL string    // empty disables the Seq sink
	Output io.Writer // console destination, os.Stdout when nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// multiHandler forwards log records to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// Enable if any handler is enabled for this level
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// SetupLogger initializes the global logger and returns a cleanup function.
// Records go to the console and, when SeqURL is set, to Seq as well.
func SetupLogger(opts Options) (*slog.Logger, func()) {
	level, err := ParseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Console handler
	var consoleHandler slog.Handler
	if opts.Format == FormatJSON {
		consoleHandler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		consoleHandler = slog.NewTextHandler(out, handlerOpts)
	}

	logger, closeFn := slog.New(consoleHandler), func() {}
	if opts.SeqURL != "" {
		// Seq handler
		_, seqHandler := slogseq.NewLogger(
			opts.SeqURL,
			slogseq.WithBatchSize(1),
			slogseq.WithFlushInterval(500*time.Millisecond),
			slogseq.WithHandlerOptions(handlerOpts),
		)
		// If Seq is not available, use console only
		if seqHandler != nil {
			logger = slog.New(&multiHandler{
				handlers: []slog.Handler{consoleHandler, seqHandler},
			})
			closeFn = func() {
				seqHandler.Close()
			}
		}
	}

	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("falling back to info level", "error", err)
	}
	return logger, closeFn
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggerFromContext returns the default logger with the request id attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID := GetRequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}
