package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"consentry/internal/schema"
	"consentry/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// Postgres persists records in PostgreSQL, deriving table and column names
// from the merged schema set so that configuration renames flow through to
// SQL without code changes. Queries are built dynamically because the schema
// shape is not known statically.
type Postgres struct {
	db      *sql.DB
	schemas schema.Set
}

func NewPostgres(db *sql.DB, schemas schema.Set) *Postgres {
	return &Postgres{db: db, schemas: schemas}
}

func (p *Postgres) Create(ctx context.Context, model string, data map[string]any) (map[string]any, error) {
	es, err := p.entity(model)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(data))
	placeholders := make([]string, 0, len(data))
	args := make([]any, 0, len(data))
	for _, key := range es.Fields.Keys() {
		value, present := data[key]
		if !present {
			continue
		}
		f, _ := es.Fields.Get(key)
		encoded, err := encodeValue(f, value)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", model, key, err)
		}
		columns = append(columns, pq.QuoteIdentifier(f.ColumnName(key)))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, encoded)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		pq.QuoteIdentifier(es.EntityName),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		selectList(es))

	row := p.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row, es)
	if err != nil {
		return nil, translatePQError(err, "insert "+model)
	}
	return record, nil
}

func (p *Postgres) FindOne(ctx context.Context, model string, where []Condition) (map[string]any, error) {
	es, err := p.entity(model)
	if err != nil {
		return nil, err
	}
	clause, args, err := buildWhere(es, where)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s LIMIT 1",
		selectList(es), pq.QuoteIdentifier(es.EntityName), clause)

	row := p.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row, es)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find %s: %w", model, err)
	}
	return record, nil
}

func (p *Postgres) FindMany(ctx context.Context, model string, where []Condition) ([]map[string]any, error) {
	es, err := p.entity(model)
	if err != nil {
		return nil, err
	}
	clause, args, err := buildWhere(es, where)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s",
		selectList(es), pq.QuoteIdentifier(es.EntityName), clause)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find many %s: %w", model, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		record, err := scanRecord(rows, es)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", model, err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (p *Postgres) Update(ctx context.Context, model string, update map[string]any, where []Condition) (map[string]any, error) {
	es, err := p.entity(model)
	if err != nil {
		return nil, err
	}

	assignments := make([]string, 0, len(update))
	args := make([]any, 0, len(update))
	for _, key := range es.Fields.Keys() {
		value, present := update[key]
		if !present {
			continue
		}
		f, _ := es.Fields.Get(key)
		encoded, err := encodeValue(f, value)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", model, key, err)
		}
		args = append(args, encoded)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(f.ColumnName(key)), len(args)))
	}
	clause, whereArgs, err := buildWhereOffset(es, where, len(args))
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING %s",
		pq.QuoteIdentifier(es.EntityName),
		strings.Join(assignments, ", "),
		clause,
		selectList(es))

	row := p.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row, es)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, translatePQError(err, "update "+model)
	}
	return record, nil
}

func (p *Postgres) UpdateMany(ctx context.Context, model string, update map[string]any, where []Condition) (int, error) {
	es, err := p.entity(model)
	if err != nil {
		return 0, err
	}

	assignments := make([]string, 0, len(update))
	args := make([]any, 0, len(update))
	for _, key := range es.Fields.Keys() {
		value, present := update[key]
		if !present {
			continue
		}
		f, _ := es.Fields.Get(key)
		encoded, err := encodeValue(f, value)
		if err != nil {
			return 0, fmt.Errorf("encode %s.%s: %w", model, key, err)
		}
		args = append(args, encoded)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(f.ColumnName(key)), len(args)))
	}
	clause, whereArgs, err := buildWhereOffset(es, where, len(args))
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s",
		pq.QuoteIdentifier(es.EntityName),
		strings.Join(assignments, ", "),
		clause)

	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translatePQError(err, "update many "+model)
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

func (p *Postgres) entity(model string) (*schema.EntitySchema, error) {
	es, ok := p.schemas[model]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", model)
	}
	return es, nil
}

func selectList(es *schema.EntitySchema) string {
	cols := make([]string, 0, es.Fields.Len())
	for _, key := range es.Fields.Keys() {
		f, _ := es.Fields.Get(key)
		cols = append(cols, pq.QuoteIdentifier(f.ColumnName(key)))
	}
	return strings.Join(cols, ", ")
}

func buildWhere(es *schema.EntitySchema, where []Condition) (string, []any, error) {
	return buildWhereOffset(es, where, 0)
}

func buildWhereOffset(es *schema.EntitySchema, where []Condition, offset int) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	predicates := make([]string, 0, len(where))
	args := make([]any, 0, len(where))
	for _, cond := range where {
		f, ok := es.Fields.Get(cond.Field)
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q in condition", cond.Field)
		}
		column := pq.QuoteIdentifier(f.ColumnName(cond.Field))
		placeholder := offset + len(args) + 1
		switch cond.Operator {
		case OpEqual:
			encoded, err := encodeValue(f, cond.Value)
			if err != nil {
				return "", nil, err
			}
			args = append(args, encoded)
			predicates = append(predicates, fmt.Sprintf("%s = $%d", column, placeholder))
		case OpIn:
			args = append(args, pq.Array(toStringSlice(cond.Value)))
			predicates = append(predicates, fmt.Sprintf("%s = ANY($%d)", column, placeholder))
		case OpContains:
			args = append(args, cond.Value)
			predicates = append(predicates, fmt.Sprintf("$%d = ANY(%s)", placeholder, column))
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", cond.Operator)
		}
	}
	return " WHERE " + strings.Join(predicates, " AND "), args, nil
}

// encodeValue maps a schema-typed value onto its SQL representation.
func encodeValue(f *schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch f.Type {
	case schema.TypeJSON:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return encoded, nil
	case schema.TypeStringArray:
		return pq.Array(toStringSlice(value)), nil
	case schema.TypeNumberArray:
		return pq.Array(toFloatSlice(value)), nil
	default:
		return value, nil
	}
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, es *schema.EntitySchema) (map[string]any, error) {
	keys := es.Fields.Keys()
	dests := make([]any, len(keys))
	for i, key := range keys {
		f, _ := es.Fields.Get(key)
		dests[i] = scanDest(f)
	}
	if err := row.Scan(dests...); err != nil {
		return nil, err
	}

	record := make(map[string]any, len(keys))
	for i, key := range keys {
		f, _ := es.Fields.Get(key)
		value, err := decodeDest(f, dests[i])
		if err != nil {
			return nil, fmt.Errorf("decode column %s: %w", key, err)
		}
		if value != nil {
			record[key] = value
		}
	}
	return record, nil
}

func scanDest(f *schema.Field) any {
	switch f.Type {
	case schema.TypeNumber:
		return new(sql.NullFloat64)
	case schema.TypeBool:
		return new(sql.NullBool)
	case schema.TypeDate:
		return new(sql.NullTime)
	case schema.TypeJSON:
		return new([]byte)
	case schema.TypeStringArray:
		return new(pq.StringArray)
	case schema.TypeNumberArray:
		return new(pq.Float64Array)
	default:
		return new(sql.NullString)
	}
}

func decodeDest(f *schema.Field, dest any) (any, error) {
	switch d := dest.(type) {
	case *sql.NullString:
		if !d.Valid {
			return nil, nil
		}
		return d.String, nil
	case *sql.NullFloat64:
		if !d.Valid {
			return nil, nil
		}
		return d.Float64, nil
	case *sql.NullBool:
		if !d.Valid {
			return nil, nil
		}
		return d.Bool, nil
	case *sql.NullTime:
		if !d.Valid {
			return nil, nil
		}
		return d.Time, nil
	case *[]byte:
		if *d == nil {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal(*d, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	case *pq.StringArray:
		if *d == nil {
			return nil, nil
		}
		return []string(*d), nil
	case *pq.Float64Array:
		if *d == nil {
			return nil, nil
		}
		return []float64(*d), nil
	default:
		return nil, fmt.Errorf("unsupported scan destination %T", dest)
	}
}

func toStringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func toFloatSlice(value any) []float64 {
	switch v := value.(type) {
	case []float64:
		return v
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			if f, ok := asFloat(item); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

func translatePQError(err error, operation string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", sentinel.ErrConflict, operation)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
