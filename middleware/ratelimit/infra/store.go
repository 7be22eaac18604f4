package infra

import (
	"context"
	"sync"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// MemoryStore guarda as janelas por chave em memória, com expiração e limpeza periódica.
//
// Implementa domain.AtomicCounterStore: o incremento acontece sob o mesmo mutex.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	cleanupEvery time.Duration
	clock        domain.Clock
}

type storeEntry struct {
	state     domain.WindowState
	expiresAt time.Time
}

type StoreOption func(*MemoryStore)

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func WithClock(c domain.Clock) StoreOption {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*storeEntry),
		cleanupEvery: time.Minute,
		clock:        domain.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.CounterStore.
func (s *MemoryStore) Get(_ context.Context, key string) (domain.WindowState, bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || !now.Before(ent.expiresAt) {
		return domain.WindowState{}, false, nil
	}
	return ent.state, true, nil
}

// Set implementa domain.CounterStore.
func (s *MemoryStore) Set(_ context.Context, key string, state domain.WindowState, ttl time.Duration) error {
	expiresAt := s.clock.Now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &storeEntry{state: state, expiresAt: expiresAt}
	return nil
}

// Increment implementa domain.AtomicCounterStore.
func (s *MemoryStore) Increment(_ context.Context, key string, now, period int64) (domain.WindowState, error) {
	at := time.Unix(now, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		prev domain.WindowState
		ok   bool
	)
	// a janela vale até reset inclusive; só abre outra quando now > reset
	if ent, found := s.entries[key]; found && !at.After(ent.expiresAt) {
		prev, ok = ent.state, true
	}

	next := domain.NextWindow(prev, ok, now, period)
	s.entries[key] = &storeEntry{state: next, expiresAt: at.Add(domain.TTL(next.ResetAt, now))}
	return next, nil
}

// Len devolve a quantidade de chaves guardadas (inclusive expiradas ainda não limpas).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Cleanup() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if now.After(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que remove janelas expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
