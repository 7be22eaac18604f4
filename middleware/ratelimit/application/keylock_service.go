package application

import (
	"context"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// KeyLockService concentra a regra de aquisição do lock por chave com timeout.
// Ele mesmo implementa domain.KeyLocker, então pode ser passado ao Service.
type KeyLockService struct {
	Locker         domain.KeyLocker
	AcquireTimeout time.Duration
}

// Lock tenta adquirir o lock da chave.
// - Se `Locker == nil`, não serializa nada.
// - Se `AcquireTimeout <= 0`, espera até o ctx cancelar.
// - Se `AcquireTimeout > 0`, espera até o timeout.
func (s KeyLockService) Lock(ctx context.Context, key string) (func(), error) {
	if s.Locker == nil {
		return func() {}, nil
	}

	if s.AcquireTimeout <= 0 {
		return s.Locker.Lock(ctx, key)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Locker.Lock(acqCtx, key)
}
