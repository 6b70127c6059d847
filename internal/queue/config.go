package queue

import "fmt"

// JoinMode selects how Execute and Retry wait for their batch.
type JoinMode string

const (
	// JoinFailFast returns the first error as soon as any runner fails.
	// Runners still in flight keep running and keep updating the buckets.
	JoinFailFast JoinMode = "fail_fast"

	// JoinAllSettled waits for every runner and aggregates all failures.
	JoinAllSettled JoinMode = "all_settled"
)

// Valid reports whether m is a known join mode.
func (m JoinMode) Valid() bool {
	return m == JoinFailFast || m == JoinAllSettled
}

// Config controls queue behaviour. It is decoded from scenario files and
// then applied with WithConfig.
//
// Example YAML:
//
//	config:
//	  join: all_settled
type Config struct {
	// Join selects fail-fast or all-settled batch joins.
	Join JoinMode `yaml:"join" json:"join"`
}

// DefaultConfig returns the defaults: fail-fast joins.
func DefaultConfig() Config {
	return Config{
		Join: JoinFailFast,
	}
}

// Merge overlays the non-zero fields of source onto c.
func (c *Config) Merge(source *Config) {
	if source == nil {
		return
	}

	if source.Join != "" {
		c.Join = source.Join
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Join.Valid() {
		return fmt.Errorf("invalid join mode %q: must be %q or %q", c.Join, JoinFailFast, JoinAllSettled)
	}
	return nil
}
