package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidLimit  = errors.New("ratelimit: limit must be > 0")
	ErrInvalidPeriod = errors.New("ratelimit: period must be >= 1s")
	ErrEmptyKey      = errors.New("ratelimit: empty identifier")
)

type Key string

// WindowState é o registro persistido por identificador durante uma janela.
//
// ResetAt só é definido na criação da janela e nunca diminui; leituras
// posteriores, antes de ResetAt, reaproveitam o valor.
type WindowState struct {
	Count   int64 `json:"count"`
	ResetAt int64 `json:"reset_at"` // epoch em segundos
}

// Expired indica se a janela já terminou no instante now (epoch em segundos).
func (w WindowState) Expired(now int64) bool { return now > w.ResetAt }

// CounterStore é o cache chave/valor com expiração usado para guardar as janelas.
//
// Get retorna ok=false quando não existe janela para a chave (ou ela já expirou).
type CounterStore interface {
	Get(ctx context.Context, key string) (state WindowState, ok bool, err error)
	Set(ctx context.Context, key string, state WindowState, ttl time.Duration) error
}

// AtomicCounterStore é implementado por stores que conseguem executar
// "lê, decide janela, incrementa e salva" como uma única operação.
type AtomicCounterStore interface {
	CounterStore
	Increment(ctx context.Context, key string, now, period int64) (WindowState, error)
}

// KeyLocker serializa o read-modify-write por chave dentro do processo.
//
// Lock bloqueia até conseguir a chave ou até o ctx encerrar.
// Ao adquirir, retorna uma função de unlock que deve ser chamada exatamente uma vez.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Usage é o estado de execução de um único request (calls/reset).
// Ele é devolvido por valor e nunca compartilhado entre requests.
type Usage struct {
	Calls int64
	Limit int64
	Reset int64 // epoch em segundos em que a janela termina
}

// Remaining é max(0, Limit-Calls).
func (u Usage) Remaining() int64 {
	if r := u.Limit - u.Calls; r > 0 {
		return r
	}
	return 0
}

// Allowed indica se o request cabe no limite da janela.
func (u Usage) Allowed() bool { return u.Calls <= u.Limit }

// Clock abstrai o relógio de parede (permite NTP e testes determinísticos).
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapta uma função para Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// TTL calcula a expiração do registro salvo: o restante da janela, nunca menor que 1s.
func TTL(reset, now int64) time.Duration {
	if d := reset - now; d > 1 {
		return time.Duration(d) * time.Second
	}
	return time.Second
}

// NextWindow aplica a regra de janela fixa sobre o estado anterior:
// sem estado (ok=false) ou janela expirada abre uma nova janela com reset=now+period;
// caso contrário continua a janela atual. Em ambos os casos o contador é incrementado.
func NextWindow(prev WindowState, ok bool, now, period int64) WindowState {
	if !ok || prev.Expired(now) {
		return WindowState{Count: 1, ResetAt: now + period}
	}
	return WindowState{Count: prev.Count + 1, ResetAt: prev.ResetAt}
}
