package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/persistence"
)

var ErrQueryRejected = errors.New("query rejected")

// SQLRunner runs native SQL inside the request's persistence session.
type SQLRunner interface {
	RunSQL(ctx context.Context, databaseName, query string) (*persistence.SQLResult, error)
}

type HistoryLister interface {
	List(ctx context.Context, databaseName string, userID *uuid.UUID, limit int) ([]models.QueryHistory, error)
}

type QueryService struct {
	runner  SQLRunner
	history HistoryLister
	commit  func(ctx context.Context) error
	lggr    logger.Logger
}

func NewQueryService(runner SQLRunner, history HistoryLister, lggr logger.Logger) *QueryService {
	return &QueryService{
		runner:  runner,
		history: history,
		commit:  commitSession,
		lggr:    lggr.Named("QueryService"),
	}
}

type QueryResult struct {
	Columns       []string                 `json:"columns"`
	Rows          []map[string]interface{} `json:"rows"`
	RowCount      int                      `json:"row_count"`
	ExecutionTime int64                    `json:"execution_time_ms"`
}

type ExecuteQueryRequest struct {
	Database string `json:"database" binding:"required"`
	Query    string `json:"query" binding:"required"`
}

var commentPattern = regexp.MustCompile(`--.*|/\*[\s\S]*?\*/`)

// ValidateSQLQuery validates SQL queries to prevent dangerous operations
func ValidateSQLQuery(query string) error {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	normalized = commentPattern.ReplaceAllString(normalized, "")
	normalized = strings.TrimSpace(normalized)

	if normalized == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrQueryRejected)
	}

	dangerousKeywords := []string{
		"DROP DATABASE",
		"DROP SCHEMA",
		"TRUNCATE",
		"DELETE FROM", // Allow DELETE but require WHERE clause
		"ALTER DATABASE",
		"CREATE DATABASE",
		"CREATE SCHEMA",
	}

	for _, keyword := range dangerousKeywords {
		if strings.Contains(normalized, keyword) {
			if keyword == "DELETE FROM" {
				if !strings.Contains(normalized, "WHERE") {
					return fmt.Errorf("%w: DELETE statements must include a WHERE clause", ErrQueryRejected)
				}
				continue
			}
			return fmt.Errorf("%w: operation '%s' is not allowed", ErrQueryRejected, keyword)
		}
	}

	// A single trailing semicolon is allowed.
	nonEmptyParts := 0
	for _, part := range strings.Split(normalized, ";") {
		if strings.TrimSpace(part) != "" {
			nonEmptyParts++
		}
	}
	if nonEmptyParts > 1 {
		return fmt.Errorf("%w: multiple statements are not allowed", ErrQueryRejected)
	}

	return nil
}

// ExecuteQuery validates and runs query on a model database.
func (s *QueryService) ExecuteQuery(ctx context.Context, req *ExecuteQueryRequest) (*QueryResult, error) {
	if err := ValidateSQLQuery(req.Query); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.runner.RunSQL(ctx, req.Database, req.Query)
	if err != nil {
		s.lggr.Warnw("Query failed", "database", req.Database, "err", err)
		return nil, err
	}
	if err := s.commit(ctx); err != nil {
		s.lggr.Warnw("Query commit failed", "database", req.Database, "err", err)
		return nil, err
	}

	result := &QueryResult{
		Columns:       res.Columns,
		Rows:          make([]map[string]interface{}, 0, len(res.Rows)),
		RowCount:      len(res.Rows),
		ExecutionTime: time.Since(start).Milliseconds(),
	}
	for _, values := range res.Rows {
		row := make(map[string]interface{}, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func (s *QueryService) History(ctx context.Context, databaseName string, userID *uuid.UUID, limit int) ([]models.QueryHistory, error) {
	return s.history.List(ctx, databaseName, userID, limit)
}
