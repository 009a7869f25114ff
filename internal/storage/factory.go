package storage

import "fmt"

// New constructs a Backend per cfg.
func New(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindMemory:
		return NewMemoryBackend(), nil
	case KindSQLite:
		busyTimeout := cfg.BusyTimeoutMs
		if busyTimeout <= 0 {
			busyTimeout = 5000
		}
		return NewSQLiteBackend(cfg.SQLitePath, busyTimeout)
	default:
		return nil, fmt.Errorf("storage: unknown backend kind %q", cfg.Kind)
	}
}
