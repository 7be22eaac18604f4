package infra

import (
	"context"
	"sync"
)

// KeyLockPool é um conjunto de semáforos de capacidade 1, um por chave.
//
// As entradas são contadas por referência e removidas quando ninguém mais
// segura nem espera a chave, então o mapa não cresce com chaves antigas.
type KeyLockPool struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyLockPool() *KeyLockPool {
	return &KeyLockPool{locks: make(map[string]*keyLock)}
}

// Lock implementa domain.KeyLocker.
func (p *KeyLockPool) Lock(ctx context.Context, key string) (func(), error) {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.sem
				p.release(key, l)
			})
		}, nil
	case <-ctx.Done():
		p.release(key, l)
		return nil, ctx.Err()
	}
}

func (p *KeyLockPool) release(key string, l *keyLock) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(p.locks, key)
	}
}

// Len devolve a quantidade de chaves com lock em uso ou em espera.
func (p *KeyLockPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
