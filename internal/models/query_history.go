package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryHistory records one native SQL execution against a model database.
type QueryHistory struct {
	ID              uuid.UUID  `json:"id"`
	DatabaseName    string     `json:"database_name"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	QueryText       string     `json:"query_text"`
	ExecutedAt      time.Time  `json:"executed_at"`
	Success         bool       `json:"success"`
	ExecutionTimeMs int        `json:"execution_time_ms"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
}

func (q *QueryHistory) Prepare() {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.ExecutedAt.IsZero() {
		q.ExecutedAt = time.Now()
	}
}
