package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dataportal/internal/database"
	"dataportal/internal/logger"
	"dataportal/internal/models"
	"dataportal/internal/utils"
)

const (
	maxJunctionTableColumns = 6
	minJunctionTableFKs     = 2
)

var ErrDatabaseNotFound = errors.New("database not found in model")

// ModelStore is the model administration surface of the persistence store.
type ModelStore interface {
	Model() *models.Model
	SyncModel(ctx context.Context) error
	DDLCreate() ([]string, error)
	DDLUpdate(ctx context.Context) ([]string, error)
	ConnectionProviders() []*database.ConnectionProvider
}

type ModelService struct {
	store ModelStore
	lggr  logger.Logger
}

func NewModelService(store ModelStore, lggr logger.Logger) *ModelService {
	return &ModelService{store: store, lggr: lggr.Named("ModelService")}
}

func (s *ModelService) Sync(ctx context.Context) error {
	start := time.Now()
	if err := s.store.SyncModel(ctx); err != nil {
		s.lggr.Errorw("Model sync failed", "err", err)
		return err
	}
	s.lggr.Infow("Model synchronized", "elapsed", time.Since(start))
	return nil
}

func (s *ModelService) DDLCreate() ([]string, error) {
	return s.store.DDLCreate()
}

func (s *ModelService) DDLUpdate(ctx context.Context) ([]string, error) {
	return s.store.DDLUpdate(ctx)
}

type ConnectionStatus struct {
	Database string          `json:"database"`
	Driver   string          `json:"driver"`
	Status   database.Status `json:"status"`
	Error    string          `json:"error,omitempty"`
	TestedAt time.Time       `json:"tested_at"`
}

func (s *ModelService) Connections() []ConnectionStatus {
	providers := s.store.ConnectionProviders()
	out := make([]ConnectionStatus, 0, len(providers))
	for _, p := range providers {
		out = append(out, ConnectionStatus{
			Database: p.DatabaseName(),
			Driver:   p.Config().Driver,
			Status:   p.Status(),
			Error:    p.ErrorMessage(),
			TestedAt: p.TestedAt(),
		})
	}
	return out
}

// VisualizeSchema renders one schema of a model database as a Mermaid ER
// diagram. An empty schema name selects the database's first schema.
func (s *ModelService) VisualizeSchema(databaseName, schemaName string) (string, error) {
	model := s.store.Model()
	if model == nil {
		return "", ErrDatabaseNotFound
	}
	db := model.FindDatabaseByName(databaseName)
	if db == nil {
		return "", fmt.Errorf("%w: %s", ErrDatabaseNotFound, databaseName)
	}

	var schema *models.Schema
	if schemaName == "" && len(db.Schemas) > 0 {
		schema = db.Schemas[0]
	} else {
		schema = db.FindSchemaByName(schemaName)
	}
	if schema == nil {
		return "", fmt.Errorf("%w: %s.%s", ErrDatabaseNotFound, databaseName, schemaName)
	}

	return generateMermaid(schema.Tables, buildRelationships(schema.Tables)), nil
}

func buildRelationships(tables []*models.Table) []models.Relationship {
	var relationships []models.Relationship
	junctionTables := detectJunctionTables(tables)

	for _, table := range tables {
		if junctionTables[table.Name] {
			for i := 0; i < len(table.ForeignKeys); i++ {
				for j := i + 1; j < len(table.ForeignKeys); j++ {
					relationships = append(relationships, models.Relationship{
						FromTable: table.ForeignKeys[i].ToTable,
						ToTable:   table.ForeignKeys[j].ToTable,
						Type:      "}o--o{",
					})
				}
			}
			continue
		}

		for _, fk := range table.ForeignKeys {
			relType := "||--o{" // Default: one-to-many
			if coversPrimaryKey(table, fk) {
				relType = "||--||"
			}
			relationships = append(relationships, models.Relationship{
				FromTable: table.Name,
				ToTable:   fk.ToTable,
				Type:      relType,
			})
		}
	}

	return relationships
}

// coversPrimaryKey reports whether the foreign key columns are exactly the
// table's key, which makes the reference one-to-one.
func coversPrimaryKey(table *models.Table, fk *models.ForeignKey) bool {
	keys := primaryKeyColumns(table)
	if len(keys) == 0 || len(keys) != len(fk.References) {
		return false
	}
	for _, ref := range fk.References {
		if !utils.Contains(keys, ref.FromColumn) {
			return false
		}
	}
	return true
}

func primaryKeyColumns(table *models.Table) []string {
	if table.PrimaryKey == nil {
		return nil
	}
	return table.PrimaryKey.Columns
}

func fkColumns(fk *models.ForeignKey) []string {
	cols := make([]string, 0, len(fk.References))
	for _, ref := range fk.References {
		cols = append(cols, ref.FromColumn)
	}
	return cols
}

func detectJunctionTables(tables []*models.Table) map[string]bool {
	junctionTables := make(map[string]bool)
	for _, table := range tables {
		pks := primaryKeyColumns(table)
		if len(table.ForeignKeys) < minJunctionTableFKs ||
			len(pks) < minJunctionTableFKs ||
			len(table.Columns) > maxJunctionTableColumns {
			continue
		}

		allFKsInPK := true
		fkCountInPK := 0
		for _, fk := range table.ForeignKeys {
			inPK := true
			for _, col := range fkColumns(fk) {
				if !utils.Contains(pks, col) {
					inPK = false
					break
				}
			}
			if !inPK {
				allFKsInPK = false
				break
			}
			fkCountInPK++
		}
		if allFKsInPK && fkCountInPK >= minJunctionTableFKs {
			junctionTables[table.Name] = true
		}
	}
	return junctionTables
}

func generateMermaid(tables []*models.Table, relationships []models.Relationship) string {
	var sb strings.Builder

	sb.WriteString("erDiagram\n")

	if len(relationships) > 0 {
		seen := make(map[string]bool)
		for _, rel := range relationships {
			key := fmt.Sprintf("%s:%s:%s", rel.FromTable, rel.Type, rel.ToTable)
			if seen[key] {
				continue
			}
			seen[key] = true

			// Mermaid requires a label, even an empty one
			sb.WriteString(fmt.Sprintf("    %s %s %s : \"\"\n",
				strings.ToUpper(rel.FromTable),
				rel.Type,
				strings.ToUpper(rel.ToTable)))
		}
		sb.WriteString("\n")
	}

	for _, table := range tables {
		sb.WriteString(fmt.Sprintf("    %s {\n", strings.ToUpper(table.Name)))

		for _, col := range table.Columns {
			annotations := ""
			if utils.Contains(primaryKeyColumns(table), col.Name) {
				annotations = " PK"
			}
			if isForeignKey(table.ForeignKeys, col.Name) {
				annotations += " FK"
			}

			sb.WriteString(fmt.Sprintf("        %s %s%s\n",
				simplifyDataType(col.ColumnType),
				col.Name,
				annotations))
		}

		sb.WriteString("    }\n\n")
	}

	return sb.String()
}

func simplifyDataType(dataType string) string {
	dt := strings.ToLower(dataType)

	switch {
	case dt == "integer", dt == "int", dt == "serial":
		return "int"
	case dt == "bigint", dt == "bigserial":
		return "bigint"
	case dt == "smallint":
		return "smallint"
	case strings.HasPrefix(dt, "character varying"), dt == "varchar":
		return "varchar"
	case strings.HasPrefix(dt, "character"), dt == "char":
		return "char"
	case strings.HasPrefix(dt, "timestamp with time zone"), dt == "timestamptz":
		return "timestamptz"
	case strings.HasPrefix(dt, "timestamp"), dt == "datetime":
		return "timestamp"
	case strings.HasPrefix(dt, "time without time zone"):
		return "time"
	case dt == "boolean", dt == "bool":
		return "boolean"
	case strings.HasPrefix(dt, "numeric"):
		return "numeric"
	case strings.HasPrefix(dt, "decimal"):
		return "decimal"
	case dt == "double precision":
		return "double"
	case strings.HasPrefix(dt, "array"):
		return "array"
	case strings.Contains(dt, " "):
		return strings.ReplaceAll(dt, " ", "_")
	default:
		return dt
	}
}

func isForeignKey(fks []*models.ForeignKey, colName string) bool {
	for _, fk := range fks {
		if utils.Contains(fkColumns(fk), colName) {
			return true
		}
	}
	return false
}
