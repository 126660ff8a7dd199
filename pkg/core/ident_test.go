package core

import "testing"

func TestNeedsQuoting(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"123abc", true},
		{"'abc'", false},
		{"my-table", true},
		{"simple", false},
		{"[my-table]", false},
		{"`1st`", false},
		{"\"a-b\"", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsQuoting(tt.name); got != tt.want {
				t.Errorf("NeedsQuoting(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestDequote(t *testing.T) {
	tests := map[string]string{
		`"roads"`:    "roads",
		"[roads]":    "roads",
		"`roads`":    "roads",
		"'roads'":    "roads",
		"roads":      "roads",
		`"my table"`: "my table",
	}
	for in, want := range tests {
		if got := Dequote(in); got != want {
			t.Errorf("Dequote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"roads", `"roads"`},
		{"my-table", `"my-table"`},
		{"[my-table]", `"my-table"`},
		{`"already"`, `"already"`},
		{`we"ird`, `"we""ird"`},
		{`x"; DROP TABLE t; --`, `"x""; DROP TABLE t; --"`},
	}
	for _, tt := range tests {
		if got := QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestIndexNames(t *testing.T) {
	if got, want := IndexTableName("roads", "geom"), `"idx_roads_geom"`; got != want {
		t.Errorf("IndexTableName() = %s, want %s", got, want)
	}
	if got, want := IndexTableName(`"2019-roads"`, "[the_geom]"), `"idx_2019-roads_the_geom"`; got != want {
		t.Errorf("IndexTableName() = %s, want %s", got, want)
	}
	if got, want := IndexPathFor("/data/world.sqlite"), "/data/world.sqlite.index"; got != want {
		t.Errorf("IndexPathFor() = %s, want %s", got, want)
	}
}

func TestTableFromSQL(t *testing.T) {
	tests := []struct {
		query, want string
	}{
		{"roads", "roads"},
		{"SELECT * FROM roads", "roads"},
		{"select geom, id from Roads where id > 3", "Roads"},
		{"(SELECT geom FROM roads) AS r", "roads"},
		{"SELECT a FROM (SELECT * FROM inner_t)", "inner_t"},
		{"SELECT *\nFROM\tparcels\nWHERE 1", "parcels"},
		{"SELECT * FROM roads;", "roads"},
		{`SELECT * FROM "my table" WHERE id = 1`, `"my table"`},
		{"SELECT * FROM [old roads]", "[old roads]"},
		{"select * from `a b`;", "`a b`"},
	}
	for _, tt := range tests {
		if got := TableFromSQL(tt.query); got != tt.want {
			t.Errorf("TableFromSQL(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestIsSubquery(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"roads", false},
		{"selection", false},
		{"select_roads", false},
		{"SELECT * FROM roads", true},
		{"SELECT\t* FROM roads", true},
		{"select(1)", true},
		{"  select\n* from roads", true},
		{"(SELECT * FROM roads)", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"with", false},
	}
	for _, tt := range tests {
		if got := IsSubquery(tt.in); got != tt.want {
			t.Errorf("IsSubquery(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSourceExpr(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"roads", `"roads"`},
		{"SELECT * FROM roads", "(SELECT * FROM roads)"},
		{"(SELECT * FROM roads)", "(SELECT * FROM roads)"},
		{"with x as (select 1) select * from x", "(with x as (select 1) select * from x)"},
	}
	for _, tt := range tests {
		if got := sourceExpr(tt.in); got != tt.want {
			t.Errorf("sourceExpr(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
