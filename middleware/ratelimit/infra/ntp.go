package infra

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
)

// NTPClock é um relógio de parede corrigido pelo offset de um servidor NTP.
//
// O offset é medido em Sync (na subida e, se quiser, periodicamente) e aplicado
// em cada Now; assim várias instâncias do gateway concordam sobre o reset das janelas.
type NTPClock struct {
	host  string
	query func(host string) (time.Duration, error)

	mu     sync.RWMutex
	offset time.Duration
}

func NewNTPClock(host string) *NTPClock {
	return &NTPClock{host: host, query: queryNTPOffset}
}

func queryNTPOffset(host string) (time.Duration, error) {
	resp, err := ntp.Query(host)
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Sync consulta o servidor e atualiza o offset. Em erro o offset anterior é mantido.
func (c *NTPClock) Sync() error {
	off, err := c.query(c.host)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.offset = off
	c.mu.Unlock()
	return nil
}

// StartSync chama Sync a cada intervalo até o contexto encerrar; erros vão para onErr.
func (c *NTPClock) StartSync(ctx DoneContext, every time.Duration, onErr func(error)) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := c.Sync(); err != nil && onErr != nil {
					onErr(err)
				}
			}
		}
	}()
}

func (c *NTPClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

func (c *NTPClock) Now() time.Time { return time.Now().Add(c.Offset()) }
