package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

var (
	ErrConfigExists        = errors.New("ratelimit: store namespace already configured")
	ErrUnknownNamespace    = errors.New("ratelimit: store namespace not configured")
	ErrUnknownDriver       = errors.New("ratelimit: unknown store driver")
	ErrRedisClientRequired = errors.New("ratelimit: redis driver requires a client")
	ErrManagerClosed       = errors.New("ratelimit: store manager closed")
)

type Driver string

const (
	DriverMemory    Driver = "memory"
	DriverRistretto Driver = "ristretto"
	DriverRedis     Driver = "redis"
)

// StoreConfig descreve como construir o store de um namespace.
type StoreConfig struct {
	Driver Driver
	// Prefix é aplicado às chaves quando o backend é compartilhado (Redis).
	Prefix string
	// CleanupEvery é o intervalo do janitor do driver memory (0 desliga).
	CleanupEvery time.Duration
	// MaxKeys é a capacidade aproximada do driver ristretto.
	MaxKeys int64
	Redis   *redis.Client
}

// DefaultStoreConfig é a configuração registrada para um namespace não configurado.
func DefaultStoreConfig(namespace string) StoreConfig {
	return StoreConfig{
		Driver:       DriverMemory,
		Prefix:       namespace + ":",
		CleanupEvery: time.Minute,
	}
}

type closer interface{ Close() }

// Manager mantém a configuração de store por namespace e constrói cada store
// uma única vez, no primeiro Use.
type Manager struct {
	mu      sync.RWMutex
	configs map[string]StoreConfig
	stores  map[string]domain.CounterStore
	locks   map[string]*KeyLockPool
	closers []closer

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		configs: make(map[string]StoreConfig),
		stores:  make(map[string]domain.CounterStore),
		locks:   make(map[string]*KeyLockPool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (m *Manager) HasConfig(namespace string) bool {
	namespace = normalizeNamespace(namespace)
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.configs[namespace]
	return ok
}

func (m *Manager) Config(namespace string) (StoreConfig, bool) {
	namespace = normalizeNamespace(namespace)
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[namespace]
	return cfg, ok
}

// SetConfig registra a configuração de um namespace. Nunca sobrescreve:
// um namespace já configurado devolve ErrConfigExists.
func (m *Manager) SetConfig(namespace string, cfg StoreConfig) error {
	namespace = normalizeNamespace(namespace)
	if namespace == "" {
		return fmt.Errorf("%w: empty namespace", ErrUnknownNamespace)
	}
	if err := validateStoreConfig(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.configs[namespace]; ok {
		return fmt.Errorf("%w: %q", ErrConfigExists, namespace)
	}
	m.configs[namespace] = cfg
	return nil
}

// EnsureConfig registra cfg apenas se o namespace ainda não existe.
// Retorna true quando a configuração foi registrada agora.
func (m *Manager) EnsureConfig(namespace string, cfg StoreConfig) bool {
	return m.SetConfig(namespace, cfg) == nil
}

// Use devolve o store do namespace, construindo-o na primeira chamada.
func (m *Manager) Use(namespace string) (domain.CounterStore, error) {
	namespace = normalizeNamespace(namespace)

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrManagerClosed
	}
	if s, ok := m.stores[namespace]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if s, ok := m.stores[namespace]; ok {
		return s, nil
	}

	cfg, ok := m.configs[namespace]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}

	s, err := m.build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build store %q: %w", namespace, err)
	}
	m.stores[namespace] = s
	return s, nil
}

// Locker devolve o lock por chave do namespace. Todos os limiters de um mesmo
// namespace recebem o mesmo pool, assim como recebem o mesmo store em Use.
func (m *Manager) Locker(namespace string) *KeyLockPool {
	namespace = normalizeNamespace(namespace)

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.locks[namespace]
	if !ok {
		p = NewKeyLockPool()
		m.locks[namespace] = p
	}
	return p
}

// Close para os janitors e libera os caches construídos.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.cancel()
	for _, c := range m.closers {
		c.Close()
	}
}

func (m *Manager) build(cfg StoreConfig) (domain.CounterStore, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		s := NewMemoryStore(WithCleanupEvery(cfg.CleanupEvery))
		s.StartJanitor(m.ctx)
		return s, nil
	case DriverRistretto:
		s, err := NewRistrettoStore(cfg.MaxKeys)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, s)
		return s, nil
	case DriverRedis:
		return NewRedisStore(cfg.Redis, WithRedisPrefix(cfg.Prefix)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func validateStoreConfig(cfg StoreConfig) error {
	switch cfg.Driver {
	case DriverMemory, DriverRistretto, "":
		return nil
	case DriverRedis:
		if cfg.Redis == nil {
			return ErrRedisClientRequired
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func normalizeNamespace(namespace string) string { return strings.TrimSpace(namespace) }
