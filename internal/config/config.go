// Package config loads and validates isaac configuration files.
//
// A configuration is YAML decoded onto Default(). The decoded value is
// checked against an embedded CUE schema, then cross references are
// checked in Go.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Standard path names.
const (
	PathMaster      = "master"
	PathDevelopment = "development"
)

// Config is the root configuration.
type Config struct {
	Store    StoreConfig  `yaml:"store" json:"store"`
	Log      LogConfig    `yaml:"log" json:"log"`
	Paths    []PathConfig `yaml:"paths" json:"paths"`
	Defaults Defaults     `yaml:"defaults" json:"defaults"`
}

// StoreConfig selects and configures the chronicle store.
type StoreConfig struct {
	Backend     string `yaml:"backend" json:"backend"`
	Path        string `yaml:"path" json:"path"`
	SyncWrites  bool   `yaml:"sync_writes" json:"sync_writes"`
	Compression string `yaml:"compression" json:"compression"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// SlogLevel returns the slog level of l. Unknown names map to Info.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// PathConfig bootstraps one path.
type PathConfig struct {
	Name    string         `yaml:"name" json:"name"`
	UUID    string         `yaml:"uuid,omitempty" json:"uuid,omitempty"`
	Origins []OriginConfig `yaml:"origins,omitempty" json:"origins,omitempty"`
}

// OriginConfig names an origin path and the time on it the new path
// branches from. A nil Time means the origin's full history.
type OriginConfig struct {
	Path string `yaml:"path" json:"path"`
	Time *int64 `yaml:"time,omitempty" json:"time,omitempty"`
}

// Defaults names the author, module and path of new stamps.
type Defaults struct {
	Author string `yaml:"author" json:"author"`
	Module string `yaml:"module" json:"module"`
	Path   string `yaml:"path" json:"path"`
}

// Default returns an in-memory configuration with the master and
// development paths. Development sees all of master.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendMemory, Compression: "none"},
		Log:   LogConfig{Level: "info"},
		Paths: []PathConfig{
			{Name: PathMaster},
			{Name: PathDevelopment, Origins: []OriginConfig{{Path: PathMaster}}},
		},
		Defaults: Defaults{Author: "user", Module: "core", Path: PathDevelopment},
	}
}

// Load reads the YAML file at path over Default() and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default() and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks c against the schema and its cross references. All
// problems are joined into the returned error.
func (c *Config) Validate() error {
	if err := c.validateSchema(); err != nil {
		return err
	}

	var errs []error
	known := make(map[string]bool, len(c.Paths))
	for i, p := range c.Paths {
		field := fmt.Sprintf("paths[%d]", i)
		if known[p.Name] {
			errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf("duplicate path %q", p.Name)})
		}
		known[p.Name] = true
		if p.UUID != "" {
			if _, err := uuid.Parse(p.UUID); err != nil {
				errs = append(errs, &ValidationError{Field: field + ".uuid", Message: err.Error()})
			}
		}
	}
	// Origins may only name paths defined earlier, so the path graph is
	// built in file order.
	defined := make(map[string]bool, len(c.Paths))
	for i, p := range c.Paths {
		for j, o := range p.Origins {
			if !defined[o.Path] {
				errs = append(errs, &ValidationError{
					Field:   fmt.Sprintf("paths[%d].origins[%d]", i, j),
					Message: fmt.Sprintf("origin %q is not defined before %q", o.Path, p.Name),
				})
			}
		}
		defined[p.Name] = true
	}
	if !known[c.Defaults.Path] {
		errs = append(errs, &ValidationError{
			Field:   "defaults.path",
			Message: fmt.Sprintf("path %q is not defined", c.Defaults.Path),
		})
	}
	return errors.Join(errs...)
}

func (c *Config) validateSchema() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	err := value.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []error
	for _, e := range cueerrors.Errors(err) {
		field := "config"
		if path := e.Path(); len(path) > 0 {
			field = strings.Join(path, ".")
		}
		format, args := e.Msg()
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	return errors.Join(errs...)
}

// PathUUID returns the configured UUID of p, or one derived from its name.
func (p PathConfig) PathUUID() uuid.UUID {
	if p.UUID != "" {
		if id, err := uuid.Parse(p.UUID); err == nil {
			return id
		}
	}
	return NameUUID(p.Name)
}

// namespace is the UUID namespace for names given in configuration.
var namespace = uuid.MustParse("2f1c1a8e-0b0e-5d5b-9a3c-6c1a5e0d7f41")

// NameUUID derives a stable UUID for an author, module or path name.
func NameUUID(name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(name))
}
