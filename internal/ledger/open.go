package ledger

import (
	"fmt"

	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/soyeahso/meetbot/internal/store"
)

// OpenBackend opens the backend named by kind ("json" or "sqlite") at path.
func OpenBackend(kind, path string, log *logging.Logger) (Backend, error) {
	switch kind {
	case "", "json":
		return NewJSONFileBackend(path, log)
	case "sqlite":
		db, err := store.Open(path, log)
		if err != nil {
			return nil, fmt.Errorf("opening ledger database: %w", err)
		}
		return NewSQLiteBackend(db, true), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", kind)
	}
}
