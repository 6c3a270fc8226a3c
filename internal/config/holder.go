package config

import "sync/atomic"

// Holder publishes the current Config snapshot. Readers always get a
// complete snapshot; Store replaces it as a whole.
type Holder struct {
	value atomic.Pointer[Config]
}

func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.value.Store(cfg)
	return h
}

func (h *Holder) Load() *Config {
	return h.value.Load()
}

// Store installs cfg and returns the snapshot it replaced.
func (h *Holder) Store(cfg *Config) *Config {
	return h.value.Swap(cfg)
}
