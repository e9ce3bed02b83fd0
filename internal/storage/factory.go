package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrUnsupportedBackend = errors.New("unsupported store backend")

// Kinds lists the backends NewStore understands, whether or not sqlite was
// compiled in.
func Kinds() []string {
	return []string{"memory", "sqlite"}
}

// NewStore returns an uninitialised store for a run catalogue. The sqlite
// backend is only compiled in with -tags sqlite.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedBackend, kind, strings.Join(Kinds(), ", "))
	}
}

// CloseIfSupported releases backends that hold a handle, such as the sqlite
// connection pool.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
