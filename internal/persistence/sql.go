package persistence

import (
	"context"
	"fmt"
	"time"

	"dataportal/internal/database"
	"dataportal/internal/models"
	"dataportal/internal/sqlformat"
)

// SQLResult holds the rows of a native query, in column order.
type SQLResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RunSQL executes native SQL on a model database inside the session
// transaction. %{} expressions are evaluated against a nil root. Every run
// is recorded in the query history.
func (s *Store) RunSQL(ctx context.Context, databaseName, query string) (*SQLResult, error) {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	tx, setup, err := sess.tx(ctx, databaseName)
	if err != nil {
		return nil, err
	}

	f := sqlformat.Parse(query)
	params, err := f.Evaluate(nil)
	if err != nil {
		return nil, err
	}

	result := &SQLResult{Columns: []string{}, Rows: [][]any{}}
	start := time.Now()
	err = sess.timed(func() error {
		rows, err := tx.QueryxContext(ctx, database.Rebind(setup.Platform, f.Text), params...)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		result.Columns = cols
		for rows.Next() {
			values, err := rows.SliceScan()
			if err != nil {
				return err
			}
			for i, v := range values {
				if b, ok := v.([]byte); ok {
					values[i] = string(b)
				}
			}
			result.Rows = append(result.Rows, values)
		}
		return rows.Err()
	})
	elapsed := time.Since(start)

	s.recordHistory(ctx, sess, databaseName, query, elapsed, err)

	if err != nil {
		if rbErr := sess.Rollback(databaseName); rbErr != nil {
			s.lggr.Warnw("Rollback failed", "database", databaseName, "err", rbErr)
		}
		return nil, fmt.Errorf("query on %s failed: %w", databaseName, err)
	}
	return result, nil
}

func (s *Store) recordHistory(ctx context.Context, sess *Session, databaseName, query string, elapsed time.Duration, runErr error) {
	if s.history == nil {
		return
	}

	entry := &models.QueryHistory{
		DatabaseName:    databaseName,
		QueryText:       query,
		Success:         runErr == nil,
		ExecutionTimeMs: int(elapsed.Milliseconds()),
	}
	if user := sess.CurrentUser(); user != nil {
		id := user.ID
		entry.UserID = &id
	}
	if runErr != nil {
		msg := runErr.Error()
		entry.ErrorMessage = &msg
	}

	if err := s.history.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.lggr.Warnw("Failed to save query history", "database", databaseName, "err", err)
	}
}
