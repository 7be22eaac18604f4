// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: janelas por chave em memória, com incremento atômico e janitor
//   - RistrettoStore: cache github.com/dgraph-io/ristretto com TTL
//   - RedisStore: hash por chave no Redis, incremento atômico via script Lua
//   - KeyLockPool: lock por chave (semáforo de capacidade 1) para stores não atômicos
//   - Manager: registro de stores por namespace
//   - NTPClock: relógio corrigido pelo offset de um servidor NTP
package infra
