package dispatcher

import "time"

// Config carries the Dispatcher's configurable knobs — spec §6's
// configuration surface and §5's timeout defaults.
type Config struct {
	RequestSubject   string        // default "chat.request"
	RawMemorySubject string        // default "memory.raw"
	IdleChunkTimeout time.Duration // default 120s
	TotalTicketTTL   time.Duration // default 600s
	DrainTimeout     time.Duration // default 10s
	AdmissionTimeout time.Duration // default 30s, spec §5's HTTP request deadline
}

func (c Config) withDefaults() Config {
	if c.RequestSubject == "" {
		c.RequestSubject = "chat.request"
	}
	if c.RawMemorySubject == "" {
		c.RawMemorySubject = "memory.raw"
	}
	if c.IdleChunkTimeout <= 0 {
		c.IdleChunkTimeout = 120 * time.Second
	}
	if c.TotalTicketTTL <= 0 {
		c.TotalTicketTTL = 600 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 10 * time.Second
	}
	if c.AdmissionTimeout <= 0 {
		c.AdmissionTimeout = 30 * time.Second
	}
	return c
}
