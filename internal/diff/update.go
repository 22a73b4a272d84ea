package diff

import (
	"dataportal/internal/database"
)

// UpdateStatements returns the DDL bringing the source (live database) up
// to the target (model): tables, columns and foreign keys present only in
// the model are created. Nothing is ever dropped.
func UpdateStatements(p database.Platform, d *DatabaseDiff) []string {
	var tables, columns, fks []string

	for _, sd := range d.Schemas {
		for _, td := range sd.Tables {
			switch td.Status {
			case Removed:
				tables = append(tables, database.CreateTableStatement(p, td.Target))
				for _, fk := range td.Target.ForeignKeys {
					fks = append(fks, database.AddForeignKeyStatement(p, fk))
				}
			case Changed:
				for _, cd := range td.Columns {
					if cd.Status == Removed {
						columns = append(columns, database.AddColumnStatement(p, cd.Target))
					}
				}
				for _, fd := range td.ForeignKeys {
					if fd.Status == Removed {
						fks = append(fks, database.AddForeignKeyStatement(p, fd.Target))
					}
				}
			}
		}
	}

	out := make([]string, 0, len(tables)+len(columns)+len(fks))
	out = append(out, tables...)
	out = append(out, columns...)
	return append(out, fks...)
}
