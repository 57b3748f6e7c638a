// Package timeouts holds the per-operation deadlines handlers and jobs put
// on their contexts. Values can be overridden from the environment at
// startup with STRATADRIVE_TIMEOUT_PING, _SHORT, _MEDIUM, _LONG and _BATCH.
package timeouts

import (
	"os"
	"sync"
	"time"
)

// Defaults.
const (
	DefaultPing   = 2 * time.Second  // health checks
	DefaultShort  = 5 * time.Second  // single-document reads and writes
	DefaultMedium = 10 * time.Second // password hashing, cascades
	DefaultLong   = 30 * time.Second // listings, purges
	DefaultBatch  = 60 * time.Second // emptying trash
)

// EnvPrefix prefixes the override variables.
const EnvPrefix = "STRATADRIVE_TIMEOUT_"

// Config is a full set of timeouts.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Batch  time.Duration
}

func defaults() Config {
	return Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
		Batch:  DefaultBatch,
	}
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(cur)
}

// Ping returns the timeout for health checks.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short returns the timeout for simple operations.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium returns the timeout for moderate operations.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long returns the timeout for complex operations.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Batch returns the timeout for bulk operations.
func Batch() time.Duration { return get(func(c Config) time.Duration { return c.Batch }) }

// Current returns the timeouts in effect.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// ConfigureFromEnv applies overrides from the environment and returns how
// many were applied. Unparseable or non-positive values are ignored.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()

	fields := []struct {
		name string
		dst  *time.Duration
	}{
		{"PING", &cur.Ping},
		{"SHORT", &cur.Short},
		{"MEDIUM", &cur.Medium},
		{"LONG", &cur.Long},
		{"BATCH", &cur.Batch},
	}

	n := 0
	for _, f := range fields {
		v := os.Getenv(EnvPrefix + f.name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			continue
		}
		*f.dst = d
		n++
	}
	return n
}
