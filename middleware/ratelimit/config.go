package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

const (
	DefaultCacheNamespace = "ratelimiter"
	DefaultLimit          = 60
	DefaultPeriod         = 60 * time.Second
	DefaultMessage        = "Rate limit exceeded"

	DefaultLimitHeader     = "X-RateLimit-Limit"
	DefaultRemainingHeader = "X-RateLimit-Remaining"
	DefaultResetHeader     = "X-RateLimit-Reset"
)

var ErrNilManager = errors.New("ratelimit: nil store manager")

// KeyFunc deriva o identificador (bucket) de um request.
type KeyFunc func(r *http.Request) (string, error)

// SkipFunc, quando retorna true, deixa o request passar sem contar.
type SkipFunc func(r *http.Request) bool

// ErrorRenderer produz a resposta final de rejeição a partir da resposta base
// (429, Retry-After e X-RateLimit-* já definidos). Pode devolver a mesma resposta
// alterada ou uma nova.
type ErrorRenderer func(r *http.Request, resp *Response) (*Response, error)

// HeaderNames define os nomes dos headers de status; campos vazios mantêm o padrão.
type HeaderNames struct {
	Limit     string
	Remaining string
	Reset     string
}

// Config configura um Limiter. Campos com valor zero herdam DefaultConfig().
type Config struct {
	CacheNamespace string
	Limit          int
	Period         time.Duration // granularidade de segundos
	Message        string

	Headers        *HeaderNames
	DisableHeaders bool

	KeyFn         KeyFunc
	SkipFn        SkipFunc
	ErrorRenderer ErrorRenderer

	Clock  domain.Clock
	Logger *zap.Logger

	// LockTimeout limita a espera pelo lock da chave quando o store não é atômico.
	LockTimeout time.Duration
	// RejectLogEvery espaça os logs de rejeição (sempre loga as primeiras).
	RejectLogEvery time.Duration
}

// DefaultConfig devolve uma configuração padrão nova a cada chamada.
func DefaultConfig() Config {
	return Config{
		CacheNamespace: DefaultCacheNamespace,
		Limit:          DefaultLimit,
		Period:         DefaultPeriod,
		Message:        DefaultMessage,
		Headers: &HeaderNames{
			Limit:     DefaultLimitHeader,
			Remaining: DefaultRemainingHeader,
			Reset:     DefaultResetHeader,
		},
		KeyFn:          RemoteAddrKey,
		Clock:          domain.SystemClock{},
		Logger:         zap.NewNop(),
		LockTimeout:    time.Second,
		RejectLogEvery: 10 * time.Second,
	}
}

// merge aplica os campos não-zero de over sobre c. Headers é mesclado campo a campo.
func (c Config) merge(over Config) Config {
	out := c
	if over.CacheNamespace != "" {
		out.CacheNamespace = over.CacheNamespace
	}
	if over.Limit != 0 {
		out.Limit = over.Limit
	}
	if over.Period != 0 {
		out.Period = over.Period
	}
	if over.Message != "" {
		out.Message = over.Message
	}

	h := HeaderNames{}
	if c.Headers != nil {
		h = *c.Headers
	}
	if over.Headers != nil {
		if over.Headers.Limit != "" {
			h.Limit = over.Headers.Limit
		}
		if over.Headers.Remaining != "" {
			h.Remaining = over.Headers.Remaining
		}
		if over.Headers.Reset != "" {
			h.Reset = over.Headers.Reset
		}
	}
	out.Headers = &h
	out.DisableHeaders = c.DisableHeaders || over.DisableHeaders

	if over.KeyFn != nil {
		out.KeyFn = over.KeyFn
	}
	if over.SkipFn != nil {
		out.SkipFn = over.SkipFn
	}
	if over.ErrorRenderer != nil {
		out.ErrorRenderer = over.ErrorRenderer
	}
	if over.Clock != nil {
		out.Clock = over.Clock
	}
	if over.Logger != nil {
		out.Logger = over.Logger
	}
	if over.LockTimeout != 0 {
		out.LockTimeout = over.LockTimeout
	}
	if over.RejectLogEvery != 0 {
		out.RejectLogEvery = over.RejectLogEvery
	}
	return out
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return domain.ErrInvalidLimit
	}
	if c.Period < time.Second {
		return domain.ErrInvalidPeriod
	}
	return nil
}
