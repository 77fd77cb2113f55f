package journal

import (
	_ "embed"
	"strconv"
	"strings"
	"time"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

type dialect struct {
	name        string
	sqlDriver   string
	schema      string
	tableExists string
	// timeArg converts a timestamp to the driver's column representation.
	timeArg func(time.Time) any
	// placeholders rewrites "?" to the driver's positional form.
	placeholders bool
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		sqlDriver:   "sqlite",
		schema:      sqliteSchema,
		tableExists: "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
		timeArg:     func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
	}
	postgresDialect = dialect{
		name:         "postgres",
		sqlDriver:    "pgx",
		schema:       postgresSchema,
		tableExists:  "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_version'",
		timeArg:      func(t time.Time) any { return t.UTC() },
		placeholders: true,
	}
)

// rebind rewrites "?" placeholders to "$1", "$2", ... for postgres.
func (d dialect) rebind(query string) string {
	if !d.placeholders || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// statements splits the embedded schema into individual statements.
func (d dialect) statements() []string {
	parts := strings.Split(d.schema, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
