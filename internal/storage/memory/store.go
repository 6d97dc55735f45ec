package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// Store — in-memory реализация мульти-арендного хранилища для локальной
// разработки и тестов. Семантика атомарности повторяет PostgreSQL-реализацию:
// выделение идентификаторов и условный инкремент остатка — одна операция
// под мьютексом.
type Store struct {
	mu      sync.Mutex
	allowed map[string]struct{}
	tenants map[string]*TenantStore
}

// NewStore создаёт хранилище с allow-list арендаторов.
// Дубликаты идентификаторов отклоняются как конфликт конфигурации.
func NewStore(tenantIDs []string) (*Store, error) {
	allowed := make(map[string]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		if _, exists := allowed[id]; exists {
			return nil, domain.ErrDuplicateKey
		}
		allowed[id] = struct{}{}
	}
	return &Store{
		allowed: allowed,
		tenants: make(map[string]*TenantStore),
	}, nil
}

// Resolve возвращает хранилище арендатора, лениво создавая его при первом
// обращении.
func (s *Store) Resolve(_ context.Context, tenantID string) (domain.TenantStore, error) {
	if tenantID == "" {
		return nil, domain.ErrUnknownTenant
	}
	if _, ok := s.allowed[tenantID]; !ok {
		return nil, domain.ErrUnknownTenant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.tenants[tenantID]
	if !ok {
		ts = newTenantStore()
		s.tenants[tenantID] = ts
	}
	return ts, nil
}

// Tenant возвращает уже созданное хранилище арендатора для сидирования в
// тестах и dev-окружении, минуя допуск-лист.
func (s *Store) Tenant(tenantID string) *TenantStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.tenants[tenantID]
	if !ok {
		ts = newTenantStore()
		s.tenants[tenantID] = ts
	}
	return ts
}

// Teardown сбрасывает все данные арендаторов; повторные вызовы безопасны.
func (s *Store) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = make(map[string]*TenantStore)
	return nil
}

var _ domain.Store = (*Store)(nil)
