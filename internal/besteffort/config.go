package besteffort

import "time"

// Config controls the best-effort task runner.
type Config struct {
	QueueSize   int
	Workers     int
	TaskTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:   256,
		Workers:     4,
		TaskTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaults.TaskTimeout
	}
	return c
}
