// Package domain define contratos e tipos de domínio para o rate limit de janela fixa.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a regra de contagem
// de detalhes de infraestrutura (memória, ristretto, Redis).
package domain
