package ratelimit

import (
	"fmt"
	"time"
)

// Config represents rate limiter configuration
type Config struct {
	RequestsPerSecond int
	BurstSize         int
	Enabled           bool

	// Cleanup settings for per-key limiters
	MaxKeys       int
	CleanupPeriod time.Duration
}

// Validate fills defaults and rejects unusable settings
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %d", c.RequestsPerSecond)
	}
	if c.BurstSize <= 0 {
		c.BurstSize = c.RequestsPerSecond
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = 10000
	}
	if c.CleanupPeriod <= 0 {
		c.CleanupPeriod = 5 * time.Minute
	}
	return nil
}
