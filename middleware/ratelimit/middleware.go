package ratelimit

import (
	"errors"
	"net"
	"net/http"
	"strings"
)

var ErrNoClientAddr = errors.New("ratelimit: request has no remote address")

// RemoteAddrKey é o KeyFunc padrão: o host de RemoteAddr.
func RemoteAddrKey(r *http.Request) (string, error) {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host, nil
	}
	if addr != "" {
		return addr, nil
	}
	return "", ErrNoClientAddr
}

// DefaultKeyFunc prefere o header keyHeader (ex: X-Api-Key), depois o primeiro IP de
// X-Forwarded-For (se trustXFF) e por fim RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) (string, error) {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v, nil
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip, nil
				}
			}
		}

		return RemoteAddrKey(r)
	}
}

// Middleware adapta o Limiter para net/http.
//
// Ordem: CheckLimit; se rejeitado, escreve ErrorResponse e para; se permitido,
// escreve os headers de status e chama next. Falhas internas (store, KeyFn,
// renderer) respondem 500.
func Middleware(l *Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.CheckLimit(r)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if !res.Allowed {
				resp, err := l.ErrorResponse(r, res)
				if err != nil {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				l.WriteResponse(w, resp)
				return
			}

			l.AddHeaders(w.Header(), res)
			next.ServeHTTP(w, r)
		})
	}
}
