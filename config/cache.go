package config

import (
	"fmt"
	"time"
)

// CacheConfig configures the cache of assembled results.
type CacheConfig struct {
	// Backend is "none", "memory" or "redis".
	Backend    string `json:"backend"`
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
	MaxEntries int    `json:"max_entries"`
	KeyPrefix  string `json:"key_prefix"`
}

func (c *CacheConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 3600
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 256
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "recsizing:result:"
	}
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "none", "memory":
		return nil
	case "redis":
		if c.Addr == "" {
			return fmt.Errorf("cache.addr is required for redis")
		}
		return nil
	default:
		return fmt.Errorf("unknown cache backend %s", c.Backend)
	}
}

func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }
