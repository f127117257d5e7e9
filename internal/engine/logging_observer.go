package engine

import (
	"context"
	"log/slog"
)

// LoggingObserver is a simple observer that logs all events using structured logging
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver() *LoggingObserver {
	return &LoggingObserver{
		logger: slog.Default(),
	}
}

// OnEvent implements the Observer interface
func (lo *LoggingObserver) OnEvent(event Event) {
	level := slog.LevelInfo
	if event.Type == EventSchemaRejected {
		level = slog.LevelWarn
	}
	lo.logger.Log(context.Background(), level, "schema_lifecycle",
		"event", event.Type,
		"table_id", event.TableID,
		"row_id", event.RowID,
		"timestamp", event.Timestamp,
		"data", event.Data,
	)
}
