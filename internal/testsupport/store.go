package testsupport

import (
	"testing"

	"mmoto/internal/config"
	"mmoto/internal/runstore"
)

// MustOpenStore opens the run history database named by cfg and registers
// cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg.StatePath())
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
