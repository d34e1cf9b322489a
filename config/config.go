// Package config holds the node configuration, its defaults and the
// PHANTOM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/crypto/ecc/curves"
	"github.com/phantomstreams/phantom-sequencer/crypto/hash"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/sequencer"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "PHANTOM_"

const (
	DefaultAPIHost         = "0.0.0.0"
	DefaultAPIPort         = 9090
	DefaultMonitorInterval = 5 * time.Second
)

// Subdirectories of DataDir.
const (
	LedgerDir  = "ledger"
	QueueDir   = "queue"
	ClusterDir = "cluster"
)

// Config is the configuration of a node.
type Config struct {
	DataDir         string
	APIHost         string
	APIPort         int
	LogLevel        string
	LogOutput       string
	Authority       common.Address
	Hasher          string
	Curve           string
	Nodes           int
	Threshold       int
	Attest          bool
	Workers         int
	Tick            time.Duration
	MonitorInterval time.Duration
}

// Default returns the default configuration. The authority has no default.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:         filepath.Join(home, ".phantom"),
		APIHost:         DefaultAPIHost,
		APIPort:         DefaultAPIPort,
		LogLevel:        log.LogLevelInfo,
		LogOutput:       "stdout",
		Hasher:          hash.DefaultHasher,
		Curve:           curves.DefaultCurve,
		Nodes:           cluster.DefaultNodes,
		Threshold:       cluster.DefaultThreshold,
		Workers:         sequencer.DefaultWorkers,
		Tick:            sequencer.DefaultTickInterval,
		MonitorInterval: DefaultMonitorInterval,
	}
}

// LoadDotEnv loads the variables of a .env file into the process
// environment. Variables already set are kept. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cannot load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides the fields that have a PHANTOM_* variable set, as
// returned by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("DATADIR", &c.DataDir)
	str("API_HOST", &c.APIHost)
	num("API_PORT", &c.APIPort)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_OUTPUT", &c.LogOutput)
	str("HASHER", &c.Hasher)
	str("CURVE", &c.Curve)
	num("NODES", &c.Nodes)
	num("THRESHOLD", &c.Threshold)
	num("WORKERS", &c.Workers)
	dur("TICK", &c.Tick)
	dur("MONITOR_INTERVAL", &c.MonitorInterval)
	if v := getenv(EnvPrefix + "AUTHORITY"); v != "" {
		if !common.IsHexAddress(v) {
			errs = append(errs, fmt.Errorf("%sAUTHORITY: invalid address %q", EnvPrefix, v))
		} else {
			c.Authority = common.HexToAddress(v)
		}
	}
	if v := getenv(EnvPrefix + "ATTEST"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sATTEST: %w", EnvPrefix, err))
		} else {
			c.Attest = b
		}
	}
	return errors.Join(errs...)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("empty data dir")
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API port %d", c.APIPort)
	}
	switch strings.ToLower(c.LogLevel) {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.Authority == (common.Address{}) {
		return fmt.Errorf("authority address is required")
	}
	if _, err := hash.New(c.Hasher); err != nil {
		return err
	}
	if _, err := curves.Parse(c.Curve); err != nil {
		return err
	}
	if c.Nodes < 1 {
		return fmt.Errorf("invalid number of nodes %d", c.Nodes)
	}
	if c.Threshold < 1 || c.Threshold > c.Nodes {
		return fmt.Errorf("invalid threshold %d for %d nodes", c.Threshold, c.Nodes)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid number of workers %d", c.Workers)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("invalid tick interval %s", c.Tick)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("invalid monitor interval %s", c.MonitorInterval)
	}
	return nil
}

// Cluster returns the cluster parameters.
func (c *Config) Cluster() cluster.Config {
	return cluster.Config{
		Nodes:     c.Nodes,
		Threshold: c.Threshold,
		Curve:     c.Curve,
		Hasher:    c.Hasher,
		Attest:    c.Attest,
	}
}

// Path returns the path of a subdirectory of DataDir.
func (c *Config) Path(sub string) string {
	return filepath.Join(c.DataDir, sub)
}
