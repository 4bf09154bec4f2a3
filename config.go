/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/truthordare/challenge"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	generatorEndpoint string
	generatorKey      string
	generatorModel    string
	generatorTimeout  time.Duration
	port              int
	prefix            string
	profile           bool
	rateBurst         int
	rateLimit         float64
	sessionTimeout    time.Duration
	tlsCert           string
	tlsKey            string
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.generatorTimeout <= 0 {
		return fmt.Errorf("invalid generator timeout (must be positive): %s", c.generatorTimeout)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	if c.rateLimit < 0 {
		return fmt.Errorf("invalid rate limit (must not be negative): %v", c.rateLimit)
	}
	if c.rateBurst < 1 {
		return fmt.Errorf("invalid rate burst (must be at least 1): %d", c.rateBurst)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// gemini returns the provider settings. An empty key leaves the provider
// unavailable, so every challenge comes from the fallback pool.
func (c *Config) gemini() challenge.GeminiConfig {
	return challenge.GeminiConfig{
		Endpoint: c.generatorEndpoint,
		APIKey:   c.generatorKey,
		Model:    c.generatorModel,
	}
}

// reservationTTL is how long a challenge request may hold its room's slot.
func (c *Config) reservationTTL() time.Duration {
	return 2 * c.generatorTimeout
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRUTHORDARE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "truthordare",
		Short:         "A realtime multiplayer truth-or-dare party game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRUTHORDARE_BIND)")
	fs.StringVar(&cfg.generatorEndpoint, "generator-endpoint", "", "base URL of the generative text API, empty for the public endpoint (env: TRUTHORDARE_GENERATOR_ENDPOINT)")
	fs.StringVar(&cfg.generatorKey, "generator-key", "", "API key for the generative text API, empty to serve only curated challenges (env: TRUTHORDARE_GENERATOR_KEY)")
	fs.StringVar(&cfg.generatorModel, "generator-model", "", "model used to generate challenges, empty for the default (env: TRUTHORDARE_GENERATOR_MODEL)")
	fs.DurationVar(&cfg.generatorTimeout, "generator-timeout", challenge.DefaultTimeout, "time to wait for generated text before falling back (env: TRUTHORDARE_GENERATOR_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRUTHORDARE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRUTHORDARE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRUTHORDARE_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 10, "inbound websocket messages a connection may send at once (env: TRUTHORDARE_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 5, "sustained inbound websocket messages per second per connection, 0 to disable (env: TRUTHORDARE_RATE_LIMIT)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are ended and purged, 0 to keep them (env: TRUTHORDARE_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRUTHORDARE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRUTHORDARE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRUTHORDARE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRUTHORDARE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("truthordare v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
