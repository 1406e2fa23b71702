package sqlstore

import (
	"strconv"
	"strings"
)

// dialect captures the few differences between the supported engines.
type dialect struct {
	name       string
	driver     string
	serial     string
	types      map[string]string
	numberedPH bool
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		serial: "INTEGER PRIMARY KEY AUTOINCREMENT",
		types:  map[string]string{"text": "TEXT", "real": "REAL", "int": "INTEGER", "bool": "BOOLEAN"},
	}
	postgresDialect = dialect{
		name:       "postgres",
		driver:     "pgx",
		serial:     "BIGSERIAL PRIMARY KEY",
		types:      map[string]string{"text": "TEXT", "real": "DOUBLE PRECISION", "int": "INTEGER", "bool": "BOOLEAN"},
		numberedPH: true,
	}
)

// rebind rewrites ? placeholders into $n for engines that need it.
func (d dialect) rebind(q string) string {
	if !d.numberedPH {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 16)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
