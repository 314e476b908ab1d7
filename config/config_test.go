package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/ilrewrite/eventlog"
	"github.com/wippyai/ilrewrite/instrument"
	"github.com/wippyai/ilrewrite/metadata"
)

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg, err := c.InstrumentConfig()
	if err != nil {
		t.Fatal(err)
	}
	want := instrument.DefaultConfig()
	if diff := cmp.Diff(want.Probes, cfg.Probes); diff != "" {
		t.Errorf("probes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Tracked, cfg.Tracked); diff != "" {
		t.Errorf("tracked (-want +got):\n%s", diff)
	}
	if cfg.Skip != nil || cfg.Methods != nil || cfg.Arguments {
		t.Errorf("unexpected options: %+v", cfg)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
[probes]
assembly = "Profiler.Support"
public-key-token = "00 11 22 33"
version = "2.1"

[[tracked]]
name = "System.IObservable` + "`" + `1"
arity = 1
root = true

[instrument]
arguments = true
workers = 4
skip = ["System.Reactive.Linq.Observable::*"]
methods = ["App.*"]

[log]
level = "debug"
development = true

[eventlog]
driver = "sqlite"
path = "events.db"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if c.Probes.Assembly != "Profiler.Support" || c.Probes.Returned != "Returned" {
		t.Errorf("probes = %+v", c.Probes)
	}
	if len(c.Tracked) != 1 {
		t.Errorf("tracked = %+v", c.Tracked)
	}
	if c.EventLog != (EventLog{Driver: DriverSQLite, Path: "events.db"}) {
		t.Errorf("eventlog = %+v", c.EventLog)
	}

	cfg, err := c.InstrumentConfig()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(metadata.Version{Major: 2, Minor: 1}, cfg.Probes.Version); diff != "" {
		t.Errorf("version (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0x00, 0x11, 0x22, 0x33}, cfg.Probes.PublicKeyToken); diff != "" {
		t.Errorf("public key token (-want +got):\n%s", diff)
	}
	if !cfg.Arguments || cfg.Workers != 4 {
		t.Errorf("arguments = %v, workers = %d", cfg.Arguments, cfg.Workers)
	}
	if !cfg.Skip.MatchMethod("System.Reactive.Linq.Observable::Return") {
		t.Error("skip pattern not applied")
	}
	if !cfg.Methods.MatchMethod("App.Program::Main") || cfg.Methods.MatchMethod("Lib.Program::Main") {
		t.Error("method pattern not applied")
	}

	log, err := c.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if !log.Core().Enabled(-1) {
		t.Error("debug level not enabled")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"not toml", "[probes", ""},
		{"unknown key", "colour = true", "unknown key"},
		{"two roots", "[[tracked]]\nname = \"A\"\narity = 1\nroot = true\n[[tracked]]\nname = \"B\"\narity = 1\nroot = true", "exactly one root"},
		{"no root", "[[tracked]]\nname = \"A\"\narity = 1", "exactly one root"},
		{"elem arg", "[[tracked]]\nname = \"A\"\narity = 1\nelem-arg = 1\nroot = true", "out of range"},
		{"arity", "[[tracked]]\nname = \"A\"\nroot = true", "arity"},
		{"driver", "[eventlog]\ndriver = \"kafka\"", "unknown driver"},
		{"path", "[eventlog]\ndriver = \"file\"", "needs a path"},
		{"level", "[log]\nlevel = \"loud\"", "log"},
		{"version", "[probes]\nversion = \"1.2.3.4.5\"", "four parts"},
		{"version number", "[probes]\nversion = \"1.x\"", "version"},
		{"workers", "[instrument]\nworkers = -1", "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ilrw.toml")
	if err := os.WriteFile(path, []byte("[instrument]\narguments = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Instrument.Arguments || len(c.Tracked) != 3 {
		t.Errorf("config = %+v", c)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpenEventLog(t *testing.T) {
	dir := t.TempDir()
	rec := &eventlog.ModuleInfo{ModuleID: 1, Path: "App.dll"}

	t.Run("memory", func(t *testing.T) {
		log, closer, err := Default().OpenEventLog()
		if err != nil {
			t.Fatal(err)
		}
		defer closer.Close()
		if _, err := log.Append(rec); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("file", func(t *testing.T) {
		c := Default()
		c.EventLog = EventLog{Driver: DriverFile, Path: filepath.Join(dir, "events.bin")}
		log, closer, err := c.OpenEventLog()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := log.Append(rec); err != nil {
			t.Fatal(err)
		}
		if err := closer.Close(); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(c.EventLog.Path)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(eventlog.Marshal(rec), data); diff != "" {
			t.Errorf("file (-want +got):\n%s", diff)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		c := Default()
		c.EventLog = EventLog{Driver: DriverSQLite, Path: filepath.Join(dir, "events.db")}
		log, closer, err := c.OpenEventLog()
		if err != nil {
			t.Fatal(err)
		}
		defer closer.Close()
		if _, err := log.Append(rec); err != nil {
			t.Fatal(err)
		}
		sink := closer.(*eventlog.SQLiteSink)
		if n, err := sink.Count(context.Background()); err != nil || n != 1 {
			t.Errorf("Count = %d, %v", n, err)
		}
	})
}
