package domain

import (
	"log/slog"
	"time"
)

// LogEvent is one line of progress output published to log subscribers.
type LogEvent struct {
	Time      time.Time  `json:"time"`
	Level     slog.Level `json:"level"`
	Message   string     `json:"message"`
	Component string     `json:"component,omitempty"`
}
