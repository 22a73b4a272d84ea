// Package persistence is the data-access facade over the model databases:
// it installs the model, binds request sessions to transactions and reads
// and writes rows by qualified table name.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"dataportal/internal/database"
	"dataportal/internal/diff"
	"dataportal/internal/logger"
	"dataportal/internal/modelio"
	"dataportal/internal/models"
)

// Setup is what an installed model database needs at run time.
type Setup struct {
	Provider *database.ConnectionProvider
	Platform database.Platform
	Database *models.Database
}

// HistoryRecorder stores native SQL executions.
type HistoryRecorder interface {
	Create(ctx context.Context, entry *models.QueryHistory) error
}

type Store struct {
	lggr    logger.Logger
	history HistoryRecorder

	mu        sync.RWMutex
	providers []*database.ConnectionProvider
	model     *models.Model
	setups    map[string]*Setup
	modelFile string

	syncMu sync.Mutex
}

// NewStore returns an empty store. history may be nil.
func NewStore(lggr logger.Logger, history HistoryRecorder) *Store {
	return &Store{
		lggr:    lggr.Named("Persistence"),
		history: history,
		setups:  make(map[string]*Setup),
	}
}

// LoadConnections parses the connections file and tests every provider.
// Providers that fail the test stay registered with an error status.
func (s *Store) LoadConnections(ctx context.Context, path string) error {
	s.lggr.Infow("Loading connections", "file", path)

	configs, err := modelio.LoadConnections(path)
	if err != nil {
		s.lggr.Errorw("Cannot load/parse connections file", "file", path, "err", err)
		return err
	}
	return s.SetConnections(ctx, configs)
}

func (s *Store) SetConnections(ctx context.Context, configs []models.ConnectionConfig) error {
	providers := make([]*database.ConnectionProvider, 0, len(configs))
	for _, cfg := range configs {
		p, err := database.NewConnectionProvider(cfg, s.lggr)
		if err != nil {
			return err
		}
		if err := p.Test(ctx); err != nil {
			s.lggr.Warnw("Connection registered with error status", "database", cfg.Database, "err", err)
		}
		providers = append(providers, p)
	}

	s.mu.Lock()
	old := s.providers
	s.providers = providers
	s.mu.Unlock()

	for _, p := range old {
		if err := p.Close(); err != nil {
			s.lggr.Warnw("Failed to close connection provider", "database", p.DatabaseName(), "err", err)
		}
	}
	return nil
}

// LoadModel parses and installs the model file and remembers it for saves.
func (s *Store) LoadModel(path string) error {
	s.lggr.Infow("Loading model", "file", path)

	model, problems, err := modelio.LoadModel(path)
	if err != nil {
		s.lggr.Errorw("Cannot load/parse model", "file", path, "err", err)
		return err
	}
	for _, p := range problems {
		s.lggr.Warnw("Model problem", "err", p)
	}

	s.InstallModel(model)
	s.SetModelFile(path)
	return nil
}

// SetModelFile sets where SaveModel and SyncModel write the model.
func (s *Store) SetModelFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelFile = path
}

func (s *Store) SaveModel() error {
	s.mu.RLock()
	model, path := s.model, s.modelFile
	s.mu.RUnlock()

	if model == nil {
		return ErrNoModel
	}
	if err := modelio.SaveModel(model, path); err != nil {
		s.lggr.Errorw("Cannot save model", "file", path, "err", err)
		return err
	}
	s.lggr.Infow("Saved model", "file", path)
	return nil
}

// InstallModel swaps in a new model. Only databases whose connection
// provider is connected get a setup.
func (s *Store) InstallModel(model *models.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setups := make(map[string]*Setup)
	for _, db := range model.Databases {
		p := s.providerLocked(db.Name)
		if p == nil {
			s.lggr.Warnw("No connection for database", "database", db.Name)
			continue
		}
		if p.Status() != database.StatusConnected {
			s.lggr.Warnw("Database not connected, skipping", "database", db.Name, "status", p.Status())
			continue
		}
		setups[db.Name] = &Setup{Provider: p, Platform: p.Platform(), Database: db}
	}

	s.setups = setups
	s.model = model
}

// SyncModel merges the live structure of every connected database into the
// model, then saves and reinstalls it. Model-only annotations survive.
func (s *Store) SyncModel(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	next, err := s.cloneModel()
	if err != nil {
		return err
	}

	merger := diff.MergeDiffer{}
	for _, p := range s.ConnectionProviders() {
		if p.Status() != database.StatusConnected {
			s.lggr.Warnw("Skipping sync of disconnected database", "database", p.DatabaseName())
			continue
		}
		live, err := p.ReadModel(ctx)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p.DatabaseName(), err)
		}
		target := next.FindDatabaseByName(p.DatabaseName())
		merged := merger.MergeDatabase(diff.DiffDatabases(live, target))
		if target == nil {
			next.Databases = append(next.Databases, merged)
		}
	}

	for _, problem := range next.Init() {
		s.lggr.Warnw("Model problem after sync", "err", problem)
	}

	s.InstallModel(next)

	s.mu.RLock()
	path := s.modelFile
	s.mu.RUnlock()
	if path == "" {
		return nil
	}
	return s.SaveModel()
}

// cloneModel deep copies the installed model through its YAML form.
func (s *Store) cloneModel() (*models.Model, error) {
	current := s.Model()
	if current == nil {
		return &models.Model{}, nil
	}
	data, err := yaml.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to copy model: %w", err)
	}
	clone := &models.Model{}
	if err := yaml.Unmarshal(data, clone); err != nil {
		return nil, fmt.Errorf("failed to copy model: %w", err)
	}
	clone.Init()
	return clone, nil
}

func (s *Store) Model() *models.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *Store) ConnectionProviders() []*database.ConnectionProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*database.ConnectionProvider(nil), s.providers...)
}

func (s *Store) ConnectionProvider(databaseName string) *database.ConnectionProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providerLocked(databaseName)
}

func (s *Store) providerLocked(databaseName string) *database.ConnectionProvider {
	for _, p := range s.providers {
		if p.DatabaseName() == databaseName {
			return p
		}
	}
	return nil
}

func (s *Store) setup(databaseName string) (*Setup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setup, ok := s.setups[databaseName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotInstalled, databaseName)
	}
	return setup, nil
}

func (s *Store) table(qualifiedTableName string) (*models.Table, error) {
	model := s.Model()
	if model == nil {
		return nil, ErrNoModel
	}
	table := model.FindTableByQualifiedName(qualifiedTableName)
	if table == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, qualifiedTableName)
	}
	return table, nil
}

// TableAccessor returns the accessor of a model table.
func (s *Store) TableAccessor(qualifiedTableName string) (*TableAccessor, error) {
	table, err := s.table(qualifiedTableName)
	if err != nil {
		return nil, err
	}
	return NewTableAccessor(table), nil
}

// Close closes every connection provider.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range s.providers {
		errs = append(errs, p.Close())
	}
	s.setups = make(map[string]*Setup)
	return errors.Join(errs...)
}
