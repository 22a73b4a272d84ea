package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"dataportal/internal/logger"
	"dataportal/internal/models"
)

// Session is the unit of work of one request: at most one transaction per
// model database, begun on first use, plus the request's user and the
// time spent in the database.
type Session struct {
	store *Store
	lggr  logger.Logger

	mu     sync.Mutex
	txs    map[string]*sqlx.Tx
	user   *models.User
	dbTime time.Duration
	closed bool
}

// OpenSession starts a session for one request. Close must be called.
func (s *Store) OpenSession() *Session {
	return &Session{
		store: s,
		lggr:  s.lggr.Named("Session"),
		txs:   make(map[string]*sqlx.Tx),
	}
}

type sessionKey struct{}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

func SessionFrom(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok && sess != nil
}

func sessionFrom(ctx context.Context) (*Session, error) {
	sess, ok := SessionFrom(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// tx returns the transaction on databaseName, beginning it if needed.
func (sess *Session) tx(ctx context.Context, databaseName string) (*sqlx.Tx, *Setup, error) {
	setup, err := sess.store.setup(databaseName)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return nil, nil, ErrSessionClosed
	}
	if tx, ok := sess.txs[databaseName]; ok {
		return tx, setup, nil
	}

	db := setup.Provider.DB()
	if db == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrDatabaseNotInstalled, databaseName)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction on %s: %w", databaseName, err)
	}
	sess.txs[databaseName] = tx
	return tx, setup, nil
}

// Active reports whether a transaction is open on databaseName.
func (sess *Session) Active(databaseName string) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	_, ok := sess.txs[databaseName]
	return ok
}

// Commit commits the transaction on databaseName, if any. A failed commit
// is rolled back and its error returned.
func (sess *Session) Commit(databaseName string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.commitLocked(databaseName)
}

func (sess *Session) commitLocked(databaseName string) error {
	tx, ok := sess.txs[databaseName]
	if !ok {
		return nil
	}
	delete(sess.txs, databaseName)

	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sqlTxDone) {
			sess.lggr.Warnw("Rollback after failed commit failed", "database", databaseName, "err", rbErr)
		}
		return fmt.Errorf("failed to commit %s: %w", databaseName, err)
	}
	return nil
}

func (sess *Session) Rollback(databaseName string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.rollbackLocked(databaseName)
}

func (sess *Session) rollbackLocked(databaseName string) error {
	tx, ok := sess.txs[databaseName]
	if !ok {
		return nil
	}
	delete(sess.txs, databaseName)
	if err := tx.Rollback(); err != nil && !errors.Is(err, sqlTxDone) {
		return fmt.Errorf("failed to roll back %s: %w", databaseName, err)
	}
	return nil
}

// CommitAll commits every open transaction in database name order and
// stops at the first failure. Transactions left open are rolled back by
// Close.
func (sess *Session) CommitAll() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	for _, name := range sess.openLocked() {
		if err := sess.commitLocked(name); err != nil {
			return err
		}
	}
	return nil
}

func (sess *Session) RollbackAll() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	var errs []error
	for _, name := range sess.openLocked() {
		errs = append(errs, sess.rollbackLocked(name))
	}
	return errors.Join(errs...)
}

func (sess *Session) openLocked() []string {
	names := make([]string, 0, len(sess.txs))
	for name := range sess.txs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close rolls back whatever is still open. It is safe to call twice.
func (sess *Session) Close() {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return
	}
	for _, name := range sess.openLocked() {
		if err := sess.rollbackLocked(name); err != nil {
			sess.lggr.Warnw("Error while closing session", "database", name, "err", err)
		}
	}
	sess.closed = true
}

func (sess *Session) Closed() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.closed
}

func (sess *Session) CurrentUser() *models.User {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.user
}

func (sess *Session) SetCurrentUser(user *models.User) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.user = user
}

func (sess *Session) Logout() {
	sess.SetCurrentUser(nil)
}

func (sess *Session) ResetDBTimer() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.dbTime = 0
}

// DBTime is the time spent in database calls since the last reset.
func (sess *Session) DBTime() time.Duration {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.dbTime
}

// timed runs f and adds its duration to the database timer.
func (sess *Session) timed(f func() error) error {
	start := time.Now()
	err := f()
	elapsed := time.Since(start)

	sess.mu.Lock()
	sess.dbTime += elapsed
	sess.mu.Unlock()
	return err
}
