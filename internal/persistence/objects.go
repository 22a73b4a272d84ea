package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"dataportal/internal/criteria"
	"dataportal/internal/database"
	"dataportal/internal/models"
	"dataportal/internal/sqlformat"
)

// GetObjectByPK loads one row by its primary key properties.
func (s *Store) GetObjectByPK(ctx context.Context, qualifiedTableName string, pk Object) (Object, error) {
	accessor, err := s.TableAccessor(qualifiedTableName)
	if err != nil {
		return nil, err
	}
	key, err := accessor.KeyOf(pk)
	if err != nil {
		return nil, err
	}

	c := criteria.New(accessor)
	for _, col := range accessor.KeyProperties() {
		c.Eq(col.ActualPropertyName(), key[col.ActualPropertyName()])
	}

	objects, err := s.GetObjectsByCriteria(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, qualifiedTableName, key)
	}
	return objects[0], nil
}

func (s *Store) GetAllObjects(ctx context.Context, qualifiedTableName string) ([]Object, error) {
	return s.runEntityQuery(ctx, qualifiedTableName, "", nil)
}

func (s *Store) GetObjectsByCriteria(ctx context.Context, c *criteria.Criteria) ([]Object, error) {
	if c == nil || c.Table() == nil {
		return nil, fmt.Errorf("%w: criteria without table", ErrNoTableInQuery)
	}
	q, err := c.QueryString()
	if err != nil {
		return nil, err
	}
	return s.runEntityQuery(ctx, c.Table().QualifiedName(), q.Text, q.Params)
}

// GetObjectsByQuery runs an entity query whose %{} expressions are
// evaluated against root. The table comes from the FROM clause.
func (s *Store) GetObjectsByQuery(ctx context.Context, query string, root any) ([]Object, error) {
	f := sqlformat.Parse(query)
	name := QualifiedTableNameFromQuery(f.Text)
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoTableInQuery, query)
	}
	params, err := f.Evaluate(root)
	if err != nil {
		return nil, err
	}
	return s.runEntityQuery(ctx, name, f.Text, params)
}

// GetObjectsForTable runs an entity query on the given table. A FROM
// clause in the query must name that same table.
func (s *Store) GetObjectsForTable(ctx context.Context, qualifiedTableName, query string, root any) ([]Object, error) {
	f := sqlformat.Parse(query)
	if name := QualifiedTableNameFromQuery(f.Text); name != "" && !strings.EqualFold(name, qualifiedTableName) {
		return nil, fmt.Errorf("%w: query selects from %s, expected %s", ErrInvalidQuery, name, qualifiedTableName)
	}
	params, err := f.Evaluate(root)
	if err != nil {
		return nil, err
	}
	return s.runEntityQuery(ctx, qualifiedTableName, f.Text, params)
}

// GetObjectsByQueryAndCriteria narrows an entity query with criteria. An
// empty query is taken from the criteria table.
func (s *Store) GetObjectsByQueryAndCriteria(ctx context.Context, query string, c *criteria.Criteria, root any) ([]Object, error) {
	if strings.TrimSpace(query) == "" {
		return s.GetObjectsByCriteria(ctx, c)
	}

	f := sqlformat.Parse(query)
	params, err := f.Evaluate(root)
	if err != nil {
		return nil, err
	}
	merged, err := criteria.MergeWhere(criteria.Query{Text: f.Text, Params: params}, c)
	if err != nil {
		return nil, err
	}

	name := QualifiedTableNameFromQuery(merged.Text)
	if name == "" && c != nil && c.Table() != nil {
		name = c.Table().QualifiedName()
	}
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoTableInQuery, query)
	}
	return s.runEntityQuery(ctx, name, merged.Text, merged.Params)
}

func (s *Store) runEntityQuery(ctx context.Context, qualifiedTableName, query string, params []any) ([]Object, error) {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	table, err := s.table(qualifiedTableName)
	if err != nil {
		return nil, err
	}
	tx, setup, err := sess.tx(ctx, table.DatabaseName())
	if err != nil {
		return nil, err
	}

	stmt, err := translate(setup.Platform, table, query)
	if err != nil {
		return nil, err
	}

	accessor := NewTableAccessor(table)
	var objects []Object
	err = sess.timed(func() error {
		rows, err := tx.QueryxContext(ctx, stmt, params...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			row := make(map[string]any)
			if err := rows.MapScan(row); err != nil {
				return err
			}
			objects = append(objects, accessor.FromRow(row))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query on %s failed: %w", qualifiedTableName, err)
	}
	return objects, nil
}

// SaveObject inserts obj. Generated values, such as auto increment keys,
// are written back into obj.
func (s *Store) SaveObject(ctx context.Context, qualifiedTableName string, obj Object) error {
	return s.write(ctx, qualifiedTableName, func(tx *sqlx.Tx, p database.Platform, a *TableAccessor) error {
		table := a.Table()

		var cols, marks []string
		var args []any
		var generated *models.Column
		for _, col := range table.Columns {
			v, present := obj[col.ActualPropertyName()]
			if col.AutoIncrement && v == nil {
				generated = col
				continue
			}
			if !present {
				continue
			}
			cols = append(cols, p.Quote(col.Name))
			marks = append(marks, "?")
			args = append(args, v)
		}

		stmt := "INSERT INTO " + p.QualifiedTable(table.SchemaName(), table.Name)
		switch {
		case len(cols) > 0:
			stmt += " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
		case p.SupportsReturning():
			stmt += " DEFAULT VALUES"
		default:
			stmt += " () VALUES ()"
		}

		if p.SupportsReturning() {
			row := make(map[string]any)
			stmt += " RETURNING " + selectList(p, table)
			if err := tx.QueryRowxContext(ctx, database.Rebind(p, stmt), args...).MapScan(row); err != nil {
				return err
			}
			for k, v := range a.FromRow(row) {
				obj[k] = v
			}
			return nil
		}

		res, err := tx.ExecContext(ctx, database.Rebind(p, stmt), args...)
		if err != nil {
			return err
		}
		if generated != nil {
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			obj[generated.ActualPropertyName()] = id
		}
		return nil
	})
}

// UpdateObject writes every non-key property present in obj to the row
// identified by obj's key.
func (s *Store) UpdateObject(ctx context.Context, qualifiedTableName string, obj Object) error {
	if _, err := s.GetObjectByPK(ctx, qualifiedTableName, obj); err != nil {
		s.rollbackTable(ctx, qualifiedTableName)
		return err
	}

	return s.write(ctx, qualifiedTableName, func(tx *sqlx.Tx, p database.Platform, a *TableAccessor) error {
		table := a.Table()

		var sets []string
		var args []any
		for _, col := range table.Columns {
			if table.IsKeyColumn(col.Name) {
				continue
			}
			v, present := obj[col.ActualPropertyName()]
			if !present {
				continue
			}
			sets = append(sets, p.Quote(col.Name)+" = ?")
			args = append(args, v)
		}
		if len(sets) == 0 {
			return nil
		}

		where, keyArgs, err := keyPredicate(p, a, obj)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
			p.QualifiedTable(table.SchemaName(), table.Name), strings.Join(sets, ", "), where)
		_, err = tx.ExecContext(ctx, database.Rebind(p, stmt), append(args, keyArgs...)...)
		return err
	})
}

// DeleteObject removes the row identified by obj's key. The row is loaded
// first so a missing row is reported as ErrNotFound.
func (s *Store) DeleteObject(ctx context.Context, qualifiedTableName string, obj Object) error {
	if _, err := s.GetObjectByPK(ctx, qualifiedTableName, obj); err != nil {
		s.rollbackTable(ctx, qualifiedTableName)
		return err
	}

	return s.write(ctx, qualifiedTableName, func(tx *sqlx.Tx, p database.Platform, a *TableAccessor) error {
		table := a.Table()
		where, args, err := keyPredicate(p, a, obj)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", p.QualifiedTable(table.SchemaName(), table.Name), where)
		_, err = tx.ExecContext(ctx, database.Rebind(p, stmt), args...)
		return err
	})
}

// write runs a statement in the session transaction of the table's
// database, rolling that transaction back when it fails.
func (s *Store) write(ctx context.Context, qualifiedTableName string, fn func(*sqlx.Tx, database.Platform, *TableAccessor) error) error {
	sess, err := sessionFrom(ctx)
	if err != nil {
		return err
	}
	table, err := s.table(qualifiedTableName)
	if err != nil {
		return err
	}
	tx, setup, err := sess.tx(ctx, table.DatabaseName())
	if err != nil {
		return err
	}

	err = sess.timed(func() error {
		return fn(tx, setup.Platform, NewTableAccessor(table))
	})
	if err != nil {
		if rbErr := sess.Rollback(table.DatabaseName()); rbErr != nil {
			s.lggr.Warnw("Rollback failed", "table", qualifiedTableName, "err", rbErr)
		}
		return fmt.Errorf("write to %s failed: %w", qualifiedTableName, err)
	}
	return nil
}

func (s *Store) rollbackTable(ctx context.Context, qualifiedTableName string) {
	sess, ok := SessionFrom(ctx)
	if !ok {
		return
	}
	table, err := s.table(qualifiedTableName)
	if err != nil {
		return
	}
	if err := sess.Rollback(table.DatabaseName()); err != nil {
		s.lggr.Warnw("Rollback failed", "table", qualifiedTableName, "err", err)
	}
}

func keyPredicate(p database.Platform, a *TableAccessor, obj Object) (string, []any, error) {
	key, err := a.KeyOf(obj)
	if err != nil {
		return "", nil, err
	}
	var parts []string
	var args []any
	for _, col := range a.KeyProperties() {
		parts = append(parts, p.Quote(col.Name)+" = ?")
		args = append(args, key[col.ActualPropertyName()])
	}
	return strings.Join(parts, " AND "), args, nil
}

// GetRelatedObjects loads the rows on the many side of a one-to-many
// relationship of obj, a row of qualifiedTableName.
func (s *Store) GetRelatedObjects(ctx context.Context, qualifiedTableName string, obj Object, relationshipName string) ([]Object, error) {
	model := s.Model()
	if model == nil {
		return nil, ErrNoModel
	}
	fk := model.FindOneToManyRelationship(qualifiedTableName, relationshipName)
	if fk == nil {
		err := fmt.Errorf("%w: %s on %s", ErrRelationshipNotFound, relationshipName, qualifiedTableName)
		s.lggr.Warnw("Cannot access relationship", "relationship", relationshipName, "table", qualifiedTableName, "err", err)
		return nil, err
	}

	c := criteria.New(NewTableAccessor(fk.FromTable()))
	for _, ref := range fk.References {
		from, to := ref.ActualFromColumn(), ref.ActualToColumn()
		if from == nil || to == nil {
			return nil, fmt.Errorf("%w: unresolved reference in %s", ErrRelationshipNotFound, fk.Name)
		}
		c.Eq(from.ActualPropertyName(), obj[to.ActualPropertyName()])
	}

	objects, err := s.GetObjectsByCriteria(ctx, c)
	if err != nil {
		s.lggr.Warnw("Cannot access relationship", "relationship", relationshipName, "table", qualifiedTableName, "err", err)
		return nil, err
	}
	return objects, nil
}
