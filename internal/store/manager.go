package store

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Manager hands out one Store per signed-in user. Stores are created on
// first use and released on sign-out, which clears the user's in-memory
// state before another identity can load.
type Manager struct {
	mu      sync.Mutex
	gateway Gateway
	catalog Catalog
	logger  *log.Logger
	stores  map[uuid.UUID]*Store
}

// NewManager creates a new store manager
func NewManager(gateway Gateway, catalog Catalog, logger *log.Logger) *Manager {
	return &Manager{
		gateway: gateway,
		catalog: catalog,
		logger:  logger,
		stores:  make(map[uuid.UUID]*Store),
	}
}

// Get returns the store for a user, creating it if needed.
func (m *Manager) Get(userID uuid.UUID) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[userID]; ok {
		return s
	}

	s := New(userID, m.gateway, m.catalog, m.logger)
	m.stores[userID] = s
	return s
}

// Release clears and drops a user's store. Storage is untouched; only the
// in-memory state goes away.
func (m *Manager) Release(userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[userID]; ok {
		s.ClearShows()
		delete(m.stores, userID)
	}
}
