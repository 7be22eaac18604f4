package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

var ErrCacheRejected = errors.New("ratelimit: ristretto rejected the write")

// RistrettoStore guarda as janelas em um cache ristretto (TinyLFU, com TTL nativo).
//
// Não é atômico: o Service serializa o get/set com o KeyLockPool.
type RistrettoStore struct {
	cache *ristretto.Cache
}

// NewRistrettoStore cria um cache com capacidade aproximada de maxKeys janelas.
func NewRistrettoStore(maxKeys int64) (*RistrettoStore, error) {
	if maxKeys <= 0 {
		maxKeys = 100_000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxKeys * 10,
		MaxCost:     maxKeys,
		BufferItems: 64,
		// custo 1 por janela: MaxCost conta chaves, não bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoStore{cache: c}, nil
}

func (s *RistrettoStore) Get(_ context.Context, key string) (domain.WindowState, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return domain.WindowState{}, false, nil
	}
	st, ok := v.(domain.WindowState)
	return st, ok, nil
}

// Set grava com custo 1 e espera o buffer do ristretto aplicar a escrita,
// para que o próximo Get da mesma chave já enxergue o valor.
//
// Chave nova pode ser recusada pela política de admissão depois de enfileirada;
// por isso a escrita é relida e a ausência vira ErrCacheRejected.
func (s *RistrettoStore) Set(_ context.Context, key string, state domain.WindowState, ttl time.Duration) error {
	if !s.cache.SetWithTTL(key, state, 1, ttl) {
		return ErrCacheRejected
	}
	s.cache.Wait()

	if _, ok := s.cache.Get(key); !ok {
		return fmt.Errorf("%w: key %q not admitted", ErrCacheRejected, key)
	}
	return nil
}

func (s *RistrettoStore) Close() { s.cache.Close() }
