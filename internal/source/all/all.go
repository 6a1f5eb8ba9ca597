// Package all registers every source backend.
package all

import (
	_ "recon/internal/source/mssql"
	_ "recon/internal/source/mysql"
	_ "recon/internal/source/postgres"
	_ "recon/internal/source/sqlite"
)
