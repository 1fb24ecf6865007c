package ctepipe

// Dialect names the database family a configuration targets
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectMariaDB  Dialect = "mariadb"
)

// Dialects lists the accepted dialects in display order
var Dialects = []Dialect{DialectPostgres, DialectMySQL, DialectSQLite, DialectMariaDB}

// IsValid reports whether d is one of Dialects
func (d Dialect) IsValid() bool {
	for _, known := range Dialects {
		if d == known {
			return true
		}
	}

	return false
}
