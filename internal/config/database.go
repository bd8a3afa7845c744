package config

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL    string
	Driver string
}

// GetConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return c.URL
}

// UsesMemory reports whether the process-local store was selected
func (c *DatabaseConfig) UsesMemory() bool {
	return c.Driver == DriverMemory
}
