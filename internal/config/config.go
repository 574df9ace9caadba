// Package config binds the process's command-line flags and environment
// variables to a single struct the rest of the program reads from.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable the shiritori server reads at startup.
type Config struct {
	Bind           string
	Port           int
	DBPath         string
	Locale         string
	DictionaryPath string
	GraceWindow    time.Duration
	Debug          bool
	Verbose        bool
}

// Validate rejects combinations that can never produce a working server.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("--db must not be empty")
	}
	if c.GraceWindow <= 0 {
		return errors.New("--grace-window must be positive")
	}
	return nil
}

// Addr returns the bind address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// BindFlags registers every flag on fs, writing results into c, and wires
// viper so SHIRITORI_-prefixed environment variables can supply the same
// values without a flag being passed explicitly.
func BindFlags(fs *pflag.FlagSet, c *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SHIRITORI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: SHIRITORI_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: SHIRITORI_PORT)")
	fs.StringVar(&c.DBPath, "db", "shiritori.db", "path to the sqlite database file (env: SHIRITORI_DB)")
	fs.StringVar(&c.Locale, "locale", "en", "default dictionary locale for new games (env: SHIRITORI_LOCALE)")
	fs.StringVar(&c.DictionaryPath, "dictionary", "", "path to a word list to load instead of the embedded default (env: SHIRITORI_DICTIONARY)")
	fs.DurationVar(&c.GraceWindow, "grace-window", 60*time.Second, "time a disconnected player is held before being removed (env: SHIRITORI_GRACE_WINDOW)")
	fs.BoolVar(&c.Debug, "debug", false, "use a short grace window and verbose diagnostics suited to local development (env: SHIRITORI_DEBUG)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "display additional output (env: SHIRITORI_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return v
}
