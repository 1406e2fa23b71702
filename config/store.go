package config

import "fmt"

// StoreConfig selects the order/result database.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && c.Driver == "sqlite" {
		c.DSN = "files/orders.db"
	}
}

func (c StoreConfig) Validate() error {
	if c.Driver != "sqlite" && c.Driver != "postgres" {
		return fmt.Errorf("unknown store driver %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	return nil
}
