package application

import (
	"context"
	"errors"
	"fmt"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

var ErrNoStore = errors.New("ratelimit: no counter store configured")

// Service concentra a regra de aplicação do rate limit (janela fixa).
//
// Ele não sabe nada sobre HTTP (headers/status), apenas conta e devolve o Usage.
type Service struct {
	Store  domain.CounterStore
	Locker domain.KeyLocker
	Limit  int64
	Period int64 // segundos
	Clock  domain.Clock
}

// Check conta o request para a chave e devolve o estado da janela.
//
// Stores atômicos (domain.AtomicCounterStore) executam tudo em uma operação.
// Nos demais o get/set é protegido pelo Locker, quando configurado; sem Locker
// requests concorrentes na mesma chave podem ler o mesmo valor e passar do limite.
func (s Service) Check(ctx context.Context, key domain.Key) (domain.Usage, error) {
	usage := domain.Usage{Limit: s.Limit}
	if key == "" {
		return usage, domain.ErrEmptyKey
	}
	if s.Store == nil {
		return usage, ErrNoStore
	}

	now := s.now()

	if st, ok := s.Store.(domain.AtomicCounterStore); ok {
		state, err := st.Increment(ctx, string(key), now, s.Period)
		if err != nil {
			return usage, fmt.Errorf("increment %q: %w", key, err)
		}
		return s.usage(state), nil
	}

	if s.Locker != nil {
		unlock, err := s.Locker.Lock(ctx, string(key))
		if err != nil {
			return usage, fmt.Errorf("lock %q: %w", key, err)
		}
		defer unlock()
	}

	prev, ok, err := s.Store.Get(ctx, string(key))
	if err != nil {
		return usage, fmt.Errorf("get %q: %w", key, err)
	}

	state := domain.NextWindow(prev, ok, now, s.Period)
	if err := s.Store.Set(ctx, string(key), state, domain.TTL(state.ResetAt, now)); err != nil {
		return usage, fmt.Errorf("set %q: %w", key, err)
	}
	return s.usage(state), nil
}

// Now devolve o relógio do serviço em epoch segundos.
func (s Service) Now() int64 { return s.now() }

func (s Service) now() int64 {
	if s.Clock == nil {
		return domain.SystemClock{}.Now().Unix()
	}
	return s.Clock.Now().Unix()
}

func (s Service) usage(state domain.WindowState) domain.Usage {
	return domain.Usage{Calls: state.Count, Limit: s.Limit, Reset: state.ResetAt}
}
