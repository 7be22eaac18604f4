// Package application contém os casos de uso do rate limit de janela fixa.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Check(ctx, key) retorna o Usage (calls/limit/reset) do request.
package application
