// Package all enables every built-in storage backend. Import it for side
// effects:
//
//	import _ "isbnetl/internal/storage/all"
//
// after which storage.New accepts "sqlite", "postgres", "mssql" and "mysql".
package all

import (
	_ "isbnetl/internal/storage/mssql"
	_ "isbnetl/internal/storage/mysql"
	_ "isbnetl/internal/storage/postgres"
	_ "isbnetl/internal/storage/sqlite"
)
