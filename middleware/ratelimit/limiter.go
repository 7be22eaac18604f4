package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ratelimit-gateway/middleware/ratelimit/application"
	"ratelimit-gateway/middleware/ratelimit/domain"
	"ratelimit-gateway/middleware/ratelimit/infra"
)

// Result é o estado de um request depois de CheckLimit.
//
// Ele pertence ao request: o Limiter não guarda nada entre CheckLimit,
// AddHeaders e ErrorResponse, então uma instância serve requests concorrentes.
type Result struct {
	Allowed bool
	// Skipped indica que SkipFn liberou o request sem contar.
	Skipped bool
	Calls   int64
	Limit   int64
	Reset   int64 // epoch em segundos
}

// Remaining é max(0, Limit-Calls).
func (r Result) Remaining() int64 {
	return domain.Usage{Calls: r.Calls, Limit: r.Limit}.Remaining()
}

// Limiter decide se cada request entra ou recebe 429, numa janela fixa por identificador.
type Limiter struct {
	cfg       Config
	headers   *HeaderNames
	render    ErrorRenderer
	svc       application.Service
	log       *zap.Logger
	rejectLog *rate.Sometimes
}

// New valida cfg (mesclada sobre DefaultConfig), garante que o namespace do
// store existe no manager (registrando o store padrão se preciso) e resolve o store.
func New(m *infra.Manager, cfg Config) (*Limiter, error) {
	if m == nil {
		return nil, ErrNilManager
	}

	c := DefaultConfig().merge(cfg)
	if err := c.validate(); err != nil {
		return nil, err
	}

	m.EnsureConfig(c.CacheNamespace, infra.DefaultStoreConfig(c.CacheNamespace))
	store, err := m.Use(c.CacheNamespace)
	if err != nil {
		return nil, err
	}

	svc := application.Service{
		Store:  store,
		Limit:  int64(c.Limit),
		Period: int64(c.Period / time.Second),
		Clock:  c.Clock,
	}
	if _, ok := store.(domain.AtomicCounterStore); !ok {
		svc.Locker = application.KeyLockService{
			Locker:         m.Locker(c.CacheNamespace),
			AcquireTimeout: c.LockTimeout,
		}
	}

	l := &Limiter{
		cfg:       c,
		render:    c.ErrorRenderer,
		svc:       svc,
		log:       c.Logger.With(zap.String("namespace", c.CacheNamespace)),
		rejectLog: &rate.Sometimes{First: 3, Interval: c.RejectLogEvery},
	}
	if !c.DisableHeaders {
		l.headers = c.Headers
	}
	if l.render == nil {
		l.render = NegotiatedErrorRenderer(c.Message)
	}
	return l, nil
}

// MustNew é New que entra em pânico se a configuração for inválida.
func MustNew(m *infra.Manager, cfg Config) *Limiter {
	l, err := New(m, cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// Config devolve a configuração efetiva (já mesclada com os padrões).
func (l *Limiter) Config() Config { return l.cfg }

// CheckLimit conta o request e informa se ele cabe no limite.
//
// Erros de KeyFn ou do store são devolvidos como estão; não são traduzidos em
// rejeição.
func (l *Limiter) CheckLimit(r *http.Request) (Result, error) {
	res := Result{Limit: int64(l.cfg.Limit)}

	if l.cfg.SkipFn != nil && l.cfg.SkipFn(r) {
		res.Allowed, res.Skipped = true, true
		return res, nil
	}

	key, err := l.cfg.KeyFn(r)
	if err != nil {
		l.log.Error("rate limit key extraction failed", zap.Error(err))
		return res, fmt.Errorf("identify request: %w", err)
	}

	usage, err := l.svc.Check(r.Context(), domain.Key(key))
	if err != nil {
		l.log.Error("rate limit check failed", zap.String("key", key), zap.Error(err))
		return res, err
	}

	res.Allowed = usage.Allowed()
	res.Calls = usage.Calls
	res.Reset = usage.Reset

	if res.Allowed {
		l.log.Debug("request allowed",
			zap.String("key", key),
			zap.Int64("calls", res.Calls),
			zap.Int64("remaining", res.Remaining()),
		)
	} else {
		l.rejectLog.Do(func() {
			l.log.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.Int64("calls", res.Calls),
				zap.Int64("limit", res.Limit),
				zap.Int64("reset", res.Reset),
			)
		})
	}
	return res, nil
}

// AddHeaders escreve limit/remaining/reset em h. Não faz nada quando os headers
// estão desligados ou quando o request foi liberado por SkipFn.
func (l *Limiter) AddHeaders(h http.Header, res Result) {
	if l.headers == nil || res.Skipped {
		return
	}
	h.Set(l.headers.Limit, formatInt64(res.Limit))
	h.Set(l.headers.Remaining, formatInt64(res.Remaining()))
	h.Set(l.headers.Reset, formatInt64(res.Reset))
}

// ErrorResponse monta a resposta 429 (Retry-After + headers) e a entrega ao ErrorRenderer.
// O resultado do renderer é devolvido sem reaplicar headers (nil mantém a resposta base).
func (l *Limiter) ErrorResponse(r *http.Request, res Result) (*Response, error) {
	retryAfter := res.Reset - l.svc.Now()
	if retryAfter < 0 {
		retryAfter = 0
	}

	resp := NewResponse(http.StatusTooManyRequests)
	resp.Header.Set("Retry-After", formatInt64(retryAfter))
	l.AddHeaders(resp.Header, res)

	out, err := l.render(r, resp)
	if err != nil {
		l.log.Error("rate limit error renderer failed", zap.Error(err))
		return nil, fmt.Errorf("render error response: %w", err)
	}
	if out == nil {
		return resp, nil
	}
	return out, nil
}

// WriteResponse escreve resp em w. Falha de escrita (cliente desconectado) só vai
// para o log em debug: o status já foi enviado e não há o que fazer.
func (l *Limiter) WriteResponse(w http.ResponseWriter, resp *Response) {
	if err := resp.Write(w); err != nil {
		l.log.Debug("rate limit response write failed", zap.Int("status", resp.StatusCode), zap.Error(err))
	}
}
