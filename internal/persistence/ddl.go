package persistence

import (
	"context"

	"dataportal/internal/database"
	"dataportal/internal/diff"
)

// DDLCreate returns, per model database, a "-- DB: <name>" line followed by
// the statements creating its tables and foreign keys.
func (s *Store) DDLCreate() ([]string, error) {
	model := s.Model()
	if model == nil {
		return nil, ErrNoModel
	}

	var out []string
	for _, db := range model.Databases {
		p := s.ConnectionProvider(db.Name)
		if p == nil {
			s.lggr.Warnw("No connection for database, skipping DDL", "database", db.Name)
			continue
		}
		platform := p.Platform()

		out = append(out, "-- DB: "+db.Name)
		tables := db.AllTables()
		for _, table := range tables {
			out = append(out, database.CreateTableStatement(platform, table))
		}
		for _, table := range tables {
			for _, fk := range table.ForeignKeys {
				out = append(out, database.AddForeignKeyStatement(platform, fk))
			}
		}
	}
	return out, nil
}

// DDLUpdate returns, per model database, the statements adding to the live
// database what only the model has. Databases that cannot be read are
// logged and skipped.
func (s *Store) DDLUpdate(ctx context.Context) ([]string, error) {
	model := s.Model()
	if model == nil {
		return nil, ErrNoModel
	}

	var out []string
	for _, db := range model.Databases {
		p := s.ConnectionProvider(db.Name)
		if p == nil {
			s.lggr.Warnw("Cannot retrieve DDLs for update", "database", db.Name, "err", ErrDatabaseNotInstalled)
			continue
		}
		live, err := p.ReadModel(ctx)
		if err != nil {
			s.lggr.Warnw("Cannot retrieve DDLs for update", "database", db.Name, "err", err)
			continue
		}

		out = append(out, "-- DB: "+db.Name)
		out = append(out, diff.UpdateStatements(p.Platform(), diff.DiffDatabases(live, db))...)
	}
	return out, nil
}
