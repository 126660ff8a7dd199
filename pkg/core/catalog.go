package core

import (
	"context"
	"sort"
	"strings"
)

const listTablesSQL = `SELECT name FROM sqlite_master WHERE type IN ('table', 'view')
UNION ALL
SELECT name FROM sqlite_temp_master WHERE type IN ('table', 'view')`

// Name fragments of registry tables kept by spatial extensions
var auxiliaryTableFragments = []string{"geometry_columns", "ref_sys"}

// ListTables returns the user tables and views of the source database and
// its temporary schema, sorted. System tables, spatial index tables and
// spatial registry tables are left out.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	db, err := s.ready("list_tables")
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, listTablesSQL)
	if err != nil {
		return nil, wrapError("list_tables", catalogError("query catalog", err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapError("list_tables", catalogError("read catalog", err))
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list_tables", catalogError("read catalog", err))
	}

	return FilterTableNames(names), nil
}

const isTableSQL = `SELECT COUNT(*) FROM (
SELECT name FROM sqlite_master WHERE type = 'table' AND LOWER(name) = LOWER(?)
UNION ALL
SELECT name FROM sqlite_temp_master WHERE type = 'table' AND LOWER(name) = LOWER(?))`

// IsTable reports whether name is an ordinary table of the source database
// or its temporary schema. Views, subqueries and unknown names are not.
func (s *Store) IsTable(ctx context.Context, name string) (bool, error) {
	db, err := s.ready("is_table")
	if err != nil {
		return false, err
	}
	if IsSubquery(name) {
		return false, nil
	}

	var n int
	table := Dequote(name)
	if err := db.QueryRowContext(ctx, isTableSQL, table, table).Scan(&n); err != nil {
		return false, wrapError("is_table", catalogError("query catalog", err))
	}
	return n > 0, nil
}

// FilterTableNames drops catalog entries that are not user data and returns
// the rest sorted without duplicates.
func FilterTableNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !isUserTable(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isUserTable(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "sqlite_") || strings.HasPrefix(lower, "idx_") {
		return false
	}
	for _, frag := range auxiliaryTableFragments {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	return true
}
