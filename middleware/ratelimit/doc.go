// Package ratelimit fornece o rate limit de janela fixa para net/http.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: caso de uso da janela fixa (Service.Check) e lock por chave
//   - infra: stores concretos (memória, ristretto, Redis), Manager de namespaces, relógio NTP
//   - ratelimit (este pacote): Limiter + middleware HTTP, extração de chave, headers e resposta 429
//
// Fluxo por request:
//
//  1. SkipFn (opcional) deixa o request passar sem tocar no contador
//  2. KeyFn deriva o identificador (padrão: IP de RemoteAddr)
//  3. application.Service conta o request na janela atual do identificador
//  4. Se passou do limite, responde 429 com Retry-After, X-RateLimit-* e o corpo do ErrorRenderer
//  5. Se permitido, escreve os headers X-RateLimit-* e chama o próximo handler
//
// Falhas do store não viram 429: o middleware responde 500 e o erro vai para o log.
package ratelimit
