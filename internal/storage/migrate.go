package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"consentry/internal/schema"
)

// Migrate creates one table per entity in dependency order. DDL is derived
// from the merged schema set, so plugin fields and configuration renames
// produce matching columns without hand-written migrations.
//
// References are not declared as foreign keys: reference resolution is
// best-effort and cross-entity integrity belongs to the registry layer.
func Migrate(ctx context.Context, db *sql.DB, schemas schema.Set) error {
	keys := make([]string, 0, len(schemas))
	for key := range schemas {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if schemas[keys[i]].Order != schemas[keys[j]].Order {
			return schemas[keys[i]].Order < schemas[keys[j]].Order
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		ddl := CreateTableSQL(schemas[key])
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table for %s: %w", key, err)
		}
	}
	return nil
}

// CreateTableSQL renders the CREATE TABLE statement for one entity.
func CreateTableSQL(es *schema.EntitySchema) string {
	cols := make([]string, 0, es.Fields.Len())
	for _, key := range es.Fields.Keys() {
		f, _ := es.Fields.Get(key)
		col := pq.QuoteIdentifier(f.ColumnName(key)) + " " + columnType(f.Type)
		if key == "id" {
			col += " PRIMARY KEY"
		} else {
			if f.Required {
				col += " NOT NULL"
			}
			if f.Unique {
				col += " UNIQUE"
			}
		}
		cols = append(cols, col)
	}
	for _, group := range es.CompositeUnique {
		quoted := make([]string, len(group))
		for i, key := range group {
			name := key
			if f, ok := es.Fields.Get(key); ok {
				name = f.ColumnName(key)
			}
			quoted[i] = pq.QuoteIdentifier(name)
		}
		cols = append(cols, "UNIQUE ("+strings.Join(quoted, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pq.QuoteIdentifier(es.EntityName), strings.Join(cols, ", "))
}

func columnType(t schema.FieldType) string {
	switch t {
	case schema.TypeNumber:
		return "DOUBLE PRECISION"
	case schema.TypeBool:
		return "BOOLEAN"
	case schema.TypeDate:
		return "TIMESTAMPTZ"
	case schema.TypeJSON:
		return "JSONB"
	case schema.TypeStringArray:
		return "TEXT[]"
	case schema.TypeNumberArray:
		return "DOUBLE PRECISION[]"
	default:
		return "TEXT"
	}
}
