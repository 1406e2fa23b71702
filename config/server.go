package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address            string `json:"address"`
	ReadTimeoutSeconds int    `json:"read_timeout_seconds"`
	// ShutdownSeconds bounds the graceful shutdown of the listener.
	ShutdownSeconds int `json:"shutdown_seconds"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8000"
	}
	if c.ReadTimeoutSeconds <= 0 {
		c.ReadTimeoutSeconds = 15
	}
	if c.ShutdownSeconds <= 0 {
		c.ShutdownSeconds = 10
	}
}

func (c ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	return nil
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// JobsConfig tunes the job runner.
type JobsConfig struct {
	// MaxConcurrent caps running jobs; 0 leaves them unbounded.
	MaxConcurrent int `json:"max_concurrent"`
	// SolveTimeoutSeconds bounds one engine call; 0 disables the deadline.
	SolveTimeoutSeconds int `json:"solve_timeout_seconds"`
	// NonOptimalAsError fails orders whose engine status is not Optimal.
	NonOptimalAsError bool `json:"non_optimal_as_error"`
}

func (c *JobsConfig) SetDefaults() {}

func (c JobsConfig) Validate() error {
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("jobs.max_concurrent must be >= 0")
	}
	if c.SolveTimeoutSeconds < 0 {
		return fmt.Errorf("jobs.solve_timeout_seconds must be >= 0")
	}
	return nil
}

func (c JobsConfig) SolveTimeout() time.Duration {
	return time.Duration(c.SolveTimeoutSeconds) * time.Second
}

// ReferenceConfig points to an optional reference table file replacing the
// embedded contracted-power and installed-PV tables.
type ReferenceConfig struct {
	Path string `json:"path"`
}
