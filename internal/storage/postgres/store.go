package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second

	// schemaPrefix отделяет схемы арендаторов от служебных схем базы.
	schemaPrefix = "tenant_"
)

// Идентификатор арендатора попадает в имя схемы, поэтому обязан быть
// безопасным идентификатором.
var tenantIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Store — мульти-арендное хранилище поверх одного разделяемого подключения
// к PostgreSQL. Каждый арендатор изолирован собственной схемой; само
// подключение устанавливается лениво и ровно один раз за время жизни
// процесса, сколько бы арендаторов ни резолвилось.
type Store struct {
	dsn     string
	allowed map[string]struct{}

	mu sync.Mutex
	db *sql.DB
}

// NewStore создаёт хранилище с allow-list арендаторов. Подключение не
// устанавливается до первого Resolve.
func NewStore(dsn string, tenantIDs []string) (*Store, error) {
	allowed := make(map[string]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		if !tenantIDPattern.MatchString(id) {
			return nil, fmt.Errorf("tenant id %q is not a valid schema identifier", id)
		}
		if _, exists := allowed[id]; exists {
			return nil, fmt.Errorf("tenant id %q listed twice: %w", id, domain.ErrDuplicateKey)
		}
		allowed[id] = struct{}{}
	}
	return &Store{dsn: dsn, allowed: allowed}, nil
}

// Resolve возвращает хранилище арендатора. Неизвестный арендатор —
// ErrUnknownTenant; недоступная база — ErrConnection.
func (s *Store) Resolve(ctx context.Context, tenantID string) (domain.TenantStore, error) {
	if tenantID == "" {
		return nil, domain.ErrUnknownTenant
	}
	if _, ok := s.allowed[tenantID]; !ok {
		return nil, domain.ErrUnknownTenant
	}

	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	return &tenantStore{db: db, schema: schemaPrefix + tenantID}, nil
}

// ensureDB устанавливает общее подключение при первом обращении.
// Мьютекс исключает гонку двойного подключения.
func (s *Store) ensureDB(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", errors.Join(domain.ErrConnection, err))
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", errors.Join(domain.ErrConnection, err))
	}

	s.db = db
	return db, nil
}

// Ping проверяет доступность подключения (для health check).
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("postgres store is not connected")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ
// (outbox-репозиторий, миграции). Подключение устанавливается при
// необходимости.
func (s *Store) DB(ctx context.Context) (*sql.DB, error) {
	return s.ensureDB(ctx)
}

// Teardown освобождает общее подключение; повторные вызовы безопасны.
// Следующий Resolve установит подключение заново.
func (s *Store) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Tenants возвращает allow-list арендаторов (для миграций).
func (s *Store) Tenants() []string {
	ids := make([]string, 0, len(s.allowed))
	for id := range s.allowed {
		ids = append(ids, id)
	}
	return ids
}

// quoteIdent экранирует идентификатор для подстановки в SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ domain.Store = (*Store)(nil)
