package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Substrings that mark a column name or declared type as geometry
var geometryKeywords = []string{"geom", "point", "linestring", "polygon"}

// IntrospectRequest names the table to describe. Query may be a plain table
// name or a SELECT; Table names the catalog table and defaults to the table
// of Query's last FROM clause. GeometryField and KeyField preselect those
// columns when the caller already knows them.
type IntrospectRequest struct {
	Query         string
	Table         string
	GeometryField string
	KeyField      string
}

// columnState tracks one column while the two passes are merged
type columnState struct {
	name       string
	typ        FieldType
	classified bool
}

type introspection struct {
	desc    *TableDescriptor
	columns map[string]*columnState
	sampled []string // pass-1 column order
	catalog []string // pass-2 column order
}

func (in *introspection) column(name string) *columnState {
	key := strings.ToLower(name)
	c, ok := in.columns[key]
	if !ok {
		c = &columnState{name: name}
		in.columns[key] = c
	}
	return c
}

func (in *introspection) isGeometry(name string) bool {
	return in.desc.GeometryField != "" && strings.EqualFold(in.desc.GeometryField, name)
}

func (in *introspection) isKey(name string) bool {
	return in.desc.KeyField != "" && strings.EqualFold(in.desc.KeyField, name)
}

// Introspect describes the columns of a table or query. The first pass
// types columns from the runtime values of one sample row, the second reads
// declared types and primary keys from the catalog. Columns typed by the
// first pass keep that type; the second only types columns the sample never
// produced, which is every column when the table has no rows. A failing pass clears Found or FoundTable and is
// logged; it is not returned as an error.
func (s *Store) Introspect(ctx context.Context, req IntrospectRequest) (*TableDescriptor, error) {
	db, err := s.ready("introspect")
	if err != nil {
		return nil, err
	}
	if req.Query == "" && req.Table == "" {
		return nil, wrapError("introspect", fmt.Errorf("%w: table is required", ErrInvalidConfig))
	}

	query := req.Query
	if query == "" {
		query = req.Table
	}
	table := req.Table
	if table == "" {
		table = TableFromSQL(query)
	}

	in := &introspection{
		desc: &TableDescriptor{
			Table:         Dequote(table),
			GeometryField: req.GeometryField,
			KeyField:      req.KeyField,
		},
		columns: make(map[string]*columnState),
	}
	log := s.logger.With("table", in.desc.Table)

	if err := in.sample(ctx, db, query); err != nil {
		log.Warn("could not sample table", "error", err)
	}
	if err := in.readCatalog(ctx, db, table); err != nil {
		log.Warn("could not read column catalog", "error", err)
	}

	in.finish()
	log.Debug("table introspected",
		"columns", len(in.desc.Columns),
		"geometry_field", in.desc.GeometryField,
		"key_field", in.desc.KeyField,
		"found", in.desc.Found,
		"found_table", in.desc.FoundTable)

	return in.desc, nil
}

// sample is pass 1: it types columns from a single row of the query
func (in *introspection) sample(ctx context.Context, db queryer, query string) error {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+sourceExpr(query)+" LIMIT 1")
	if err != nil {
		return catalogError("sample row", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return catalogError("sample columns", err)
	}
	for _, name := range names {
		in.column(name)
		in.sampled = append(in.sampled, name)
	}

	if !rows.Next() {
		return rows.Err()
	}
	in.desc.Found = true

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		in.desc.Found = false
		return catalogError("scan sample row", err)
	}

	for i, name := range names {
		in.classifyValue(in.column(name), values[i])
	}
	return nil
}

func (in *introspection) classifyValue(c *columnState, v any) {
	if in.isGeometry(c.name) {
		return
	}
	switch KindOf(v) {
	case KindInteger:
		c.typ, c.classified = FieldInteger, true
	case KindFloat:
		c.typ, c.classified = FieldDouble, true
	case KindText, KindNull:
		c.typ, c.classified = FieldString, true
	case KindBlob:
		if in.desc.GeometryField == "" && hasGeometryKeyword(c.name) {
			in.desc.GeometryField = c.name
			return
		}
		c.typ, c.classified = FieldString, true
	}
}

// readCatalog is pass 2: declared types and primary keys from table_info
func (in *introspection) readCatalog(ctx context.Context, db queryer, table string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+QuoteIdentifier(table)+")")
	if err != nil {
		return catalogError("table_info", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, declType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			in.desc.FoundTable = false
			return catalogError("read table_info", err)
		}
		in.desc.FoundTable = true
		in.catalog = append(in.catalog, name)
		in.classifyDeclared(in.column(name), declType, pk != 0)
	}
	if err := rows.Err(); err != nil {
		in.desc.FoundTable = false
		return catalogError("read table_info", err)
	}
	return nil
}

func (in *introspection) classifyDeclared(c *columnState, declType string, primaryKey bool) {
	if primaryKey && in.desc.KeyField == "" {
		in.desc.KeyField = c.name
	}
	if in.isGeometry(c.name) {
		return
	}
	if c.classified {
		return
	}

	decl := strings.ToLower(declType)
	if in.desc.GeometryField == "" && !in.isKey(c.name) &&
		(hasGeometryKeyword(decl) || hasGeometryKeyword(c.name)) {
		in.desc.GeometryField = c.name
		return
	}

	switch {
	case strings.Contains(decl, "int"):
		c.typ = FieldInteger
	case containsAny(decl, "text", "char", "clob"):
		c.typ = FieldString
	case containsAny(decl, "real", "float", "double"):
		c.typ = FieldDouble
	case strings.Contains(decl, "blob"):
		c.typ = FieldString
	default:
		// Unknown affinity: keep whatever pass 1 guessed, if anything.
		return
	}
	c.classified = true
}

// finish emits descriptors in catalog order followed by columns only the
// sample query produced.
func (in *introspection) finish() {
	order := make([]string, 0, len(in.catalog)+len(in.sampled))
	emitted := make(map[string]bool, len(in.columns))
	for _, list := range [][]string{in.catalog, in.sampled} {
		for _, name := range list {
			key := strings.ToLower(name)
			if emitted[key] {
				continue
			}
			emitted[key] = true
			order = append(order, name)
		}
	}

	for _, name := range order {
		c := in.columns[strings.ToLower(name)]
		switch {
		case in.isGeometry(c.name):
			in.desc.GeometryField = c.name
			in.desc.Columns = append(in.desc.Columns, ColumnDescriptor{Name: c.name, Type: FieldUnknown, Role: RoleGeometry})
		case in.isKey(c.name):
			in.desc.KeyField = c.name
			in.desc.Columns = append(in.desc.Columns, ColumnDescriptor{Name: c.name, Type: c.typ, Role: RoleKey})
		case c.classified:
			in.desc.Columns = append(in.desc.Columns, ColumnDescriptor{Name: c.name, Type: c.typ, Role: RoleAttribute})
		}
	}
}

func hasGeometryKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range geometryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
