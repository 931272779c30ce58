// Package config loads the pie.yaml file read by the CLI.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/pie/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "pie.yaml"

// Transports.
const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
)

// Redis holds the connection shared by the redis transport, store and lock.
type Redis struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// Config describes one run: which program, over which graph, how it is split
// and where results go.
type Config struct {
	App           string         `yaml:"app" json:"app"`
	Graph         string         `yaml:"graph" json:"graph"`
	Directed      bool           `yaml:"directed" json:"directed"`
	Partitions    int            `yaml:"partitions" json:"partitions"`
	Partitioner   string         `yaml:"partitioner" json:"partitioner"`
	Threads       int            `yaml:"threads" json:"threads"`
	Transport     string         `yaml:"transport" json:"transport"`
	Store         string         `yaml:"store" json:"store"`
	Redis         Redis          `yaml:"redis" json:"redis"`
	Group         string         `yaml:"group" json:"group"`
	Params        map[string]any `yaml:"params" json:"params"`
	ResultKey     string         `yaml:"result_key" json:"result_key"`
	MaxSupersteps int            `yaml:"max_supersteps" json:"max_supersteps"`
	LogLevel      string         `yaml:"log_level" json:"log_level"`
	Listen        string         `yaml:"listen" json:"listen"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Partitions:  1,
		Partitioner: "hash",
		Threads:     1,
		Transport:   TransportMemory,
		Store:       TransportMemory,
		Redis:       Redis{Addr: "localhost:6379", Prefix: "pie:"},
		ResultKey:   "result",
		LogLevel:    "info",
		Listen:      ":8080",
	}
}

// Load reads path (YAML, or JSON when the extension is .json) over the defaults.
// A missing file at DefaultPath is not an error; any other missing file is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks the fields a run needs.
func (c Config) Validate() error {
	var errs []error
	if c.App == "" {
		errs = append(errs, errors.New("app is required"))
	}
	if c.Graph == "" {
		errs = append(errs, errors.New("graph is required"))
	}
	if c.Partitions < 1 {
		errs = append(errs, fmt.Errorf("partitions must be positive, got %d", c.Partitions))
	}
	if c.MaxSupersteps < 0 {
		errs = append(errs, fmt.Errorf("max_supersteps must not be negative, got %d", c.MaxSupersteps))
	}
	if err := checkBackend("transport", c.Transport); err != nil {
		errs = append(errs, err)
	}
	if err := checkBackend("store", c.Store); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkBackend(field, v string) error {
	if v != TransportMemory && v != TransportRedis {
		return fmt.Errorf("%s must be %q or %q, got %q", field, TransportMemory, TransportRedis, v)
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c Config) UsesRedis() bool {
	return c.Transport == TransportRedis || c.Store == TransportRedis
}
