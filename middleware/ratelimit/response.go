package ratelimit

import (
	"encoding/json"
	"net/http"
)

// Response é a resposta de rejeição montada pelo Limiter antes de ir para o ResponseWriter.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewResponse(status int) *Response {
	return &Response{StatusCode: status, Header: make(http.Header)}
}

func (r *Response) SetContentType(ct string) *Response {
	r.Header.Set("Content-Type", ct)
	return r
}

func (r *Response) SetBody(body string) *Response {
	r.Body = []byte(body)
	return r
}

// SetJSON serializa v como corpo e define Content-Type application/json.
func (r *Response) SetJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Body = b
	r.SetContentType("application/json; charset=utf-8")
	return nil
}

// Write copia headers, status e corpo para w.
func (r *Response) Write(w http.ResponseWriter) error {
	dst := w.Header()
	for k, vs := range r.Header {
		dst[k] = append([]string(nil), vs...)
	}
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
