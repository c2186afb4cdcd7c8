package archive

import (
	"fmt"
	"strings"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// Supported archive drivers
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open creates the archive selected by cfg. It returns a nil Store for the
// "none" driver; databaseURL is only used by the postgres driver.
func Open(cfg domain.ArchiveConfig, databaseURL string) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("%w: archive.sqlite_path is required", domain.ErrConfiguration)
		}
		return NewSQLiteStore(cfg.SQLitePath)
	case DriverPostgres:
		return NewPostgresStoreFromURL(databaseURL)
	default:
		return nil, fmt.Errorf("%w: unknown archive driver %q", domain.ErrConfiguration, cfg.Driver)
	}
}
