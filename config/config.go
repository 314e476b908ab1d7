// Package config handles ilrw.toml command configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/wippyai/ilrewrite/eventlog"
	"github.com/wippyai/ilrewrite/instrument"
	"github.com/wippyai/ilrewrite/metadata"
)

// Event log drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config represents an ilrw.toml file.
type Config struct {
	Probes     Probes     `toml:"probes"`
	Tracked    []Tracked  `toml:"tracked"`
	Instrument Instrument `toml:"instrument"`
	Log        Log        `toml:"log"`
	EventLog   EventLog   `toml:"eventlog"`
}

// Probes names the support library the inserted code calls.
type Probes struct {
	Assembly             string       `toml:"assembly"`
	PublicKeyToken       metadata.Hex `toml:"public-key-token"`
	Version              string       `toml:"version"`
	Type                 string       `toml:"type"`
	Returned             string       `toml:"returned"`
	ReturnedSubinterface string       `toml:"returned-subinterface"`
	Calling              string       `toml:"calling"`
	Argument             string       `toml:"argument"`
}

// Tracked is one interface of the tracked family.
type Tracked struct {
	Name    string `toml:"name"`
	Arity   int    `toml:"arity"`
	ElemArg int    `toml:"elem-arg"`
	Root    bool   `toml:"root"`
}

// Instrument configures the rewriter.
type Instrument struct {
	Skip      []string `toml:"skip"`
	Methods   []string `toml:"methods"`
	Workers   int      `toml:"workers"`
	Arguments bool     `toml:"arguments"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// EventLog selects where instrumentation events go.
type EventLog struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := instrument.DefaultProbes()
	c := &Config{
		Probes: Probes{
			Assembly:             p.Assembly,
			PublicKeyToken:       metadata.Hex(p.PublicKeyToken),
			Version:              formatVersion(p.Version),
			Type:                 p.Type,
			Returned:             p.Returned,
			ReturnedSubinterface: p.ReturnedSubinterface,
			Calling:              p.Calling,
			Argument:             p.Argument,
		},
		Log:      Log{Level: "info"},
		EventLog: EventLog{Driver: DriverMemory},
	}
	for _, iface := range instrument.DefaultTracked() {
		c.Tracked = append(c.Tracked, Tracked{Name: iface.Name, Arity: iface.Arity, ElemArg: iface.ElemArg, Root: iface.Root})
	}
	return c
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values; a [[tracked]] list replaces the default family.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	family := c.Tracked
	c.Tracked = nil

	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	if len(c.Tracked) == 0 {
		c.Tracked = family
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the family, the event log driver and the log level.
func (c *Config) Validate() error {
	roots := 0
	for i, t := range c.Tracked {
		if t.Name == "" {
			return fmt.Errorf("tracked[%d]: missing name", i)
		}
		if t.Arity < 1 {
			return fmt.Errorf("tracked %s: arity must be positive", t.Name)
		}
		if t.ElemArg < 0 || t.ElemArg >= t.Arity {
			return fmt.Errorf("tracked %s: elem-arg %d out of range for arity %d", t.Name, t.ElemArg, t.Arity)
		}
		if t.Root {
			roots++
		}
	}
	if roots != 1 {
		return fmt.Errorf("tracked family needs exactly one root, got %d", roots)
	}
	if c.Probes.Returned == "" {
		return fmt.Errorf("probes: returned must be set")
	}
	if _, err := parseVersion(c.Probes.Version); err != nil {
		return fmt.Errorf("probes: %w", err)
	}

	switch c.EventLog.Driver {
	case DriverMemory:
	case DriverFile, DriverSQLite:
		if c.EventLog.Path == "" {
			return fmt.Errorf("eventlog: driver %s needs a path", c.EventLog.Driver)
		}
	default:
		return fmt.Errorf("eventlog: unknown driver %q", c.EventLog.Driver)
	}

	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Instrument.Workers < 0 {
		return fmt.Errorf("instrument: workers must not be negative")
	}
	return nil
}

// InstrumentConfig converts the file into a coordinator configuration.
// Skip and method patterns use the wildcard syntax of
// instrument.NewWildcardMatcher.
func (c *Config) InstrumentConfig() (instrument.Config, error) {
	v, err := parseVersion(c.Probes.Version)
	if err != nil {
		return instrument.Config{}, err
	}
	cfg := instrument.Config{
		Probes: instrument.ProbeNames{
			Assembly:             c.Probes.Assembly,
			Type:                 c.Probes.Type,
			Returned:             c.Probes.Returned,
			ReturnedSubinterface: c.Probes.ReturnedSubinterface,
			Calling:              c.Probes.Calling,
			Argument:             c.Probes.Argument,
			PublicKeyToken:       []byte(c.Probes.PublicKeyToken),
			Version:              v,
		},
		Workers:   c.Instrument.Workers,
		Arguments: c.Instrument.Arguments,
	}
	for _, t := range c.Tracked {
		cfg.Tracked = append(cfg.Tracked, instrument.Interface{Name: t.Name, Arity: t.Arity, ElemArg: t.ElemArg, Root: t.Root})
	}
	if len(c.Instrument.Skip) > 0 {
		cfg.Skip = instrument.NewWildcardMatcher(c.Instrument.Skip)
	}
	if len(c.Instrument.Methods) > 0 {
		cfg.Methods = instrument.NewWildcardMatcher(c.Instrument.Methods)
	}
	return cfg, nil
}

// Logger builds the configured zap logger.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// OpenEventLog creates the event log with the configured sink. The returned
// closer releases the sink; it is never nil.
func (c *Config) OpenEventLog() (*eventlog.Log, io.Closer, error) {
	switch c.EventLog.Driver {
	case DriverFile:
		f, err := os.Create(c.EventLog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("creating event log: %w", err)
		}
		return eventlog.New(eventlog.NewStreamSink(f)), f, nil
	case DriverSQLite:
		sink, err := eventlog.OpenSQLite(c.EventLog.Path)
		if err != nil {
			return nil, nil, err
		}
		return eventlog.New(sink), sink, nil
	}
	return eventlog.New(), io.NopCloser(nil), nil
}

func parseVersion(s string) (metadata.Version, error) {
	var v metadata.Version
	if s == "" {
		return v, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return v, fmt.Errorf("version %q has more than four parts", s)
	}
	fields := []*uint16{&v.Major, &v.Minor, &v.Build, &v.Revision}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return v, fmt.Errorf("version %q: %w", s, err)
		}
		*fields[i] = uint16(n)
	}
	return v, nil
}

func formatVersion(v metadata.Version) string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}
