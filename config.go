/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind            string
	corsOrigins     []string
	openAIKey       string
	openAIModel     string
	openAIURL       string
	points          int
	port            int
	prefix          string
	profile         bool
	providerTimeout time.Duration
	questionBank    string
	roundDuration   time.Duration
	sessionTimeout  time.Duration
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roundDuration < time.Second {
		return fmt.Errorf("invalid round duration (must be at least 1s): %s", c.roundDuration)
	}
	if c.points < 1 {
		return fmt.Errorf("invalid points per correct answer (must be positive): %d", c.points)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	if c.providerTimeout <= 0 || c.providerTimeout >= defaultPongWait {
		return fmt.Errorf("invalid provider timeout (must be positive and under %s): %s", defaultPongWait, c.providerTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizbox",
		Short:         "Hosts live multiplayer quiz sessions over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZBOX_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", []string{"*"}, "origins allowed to call the api and open websockets (env: QUIZBOX_CORS_ORIGIN)")
	fs.StringVar(&cfg.openAIKey, "openai-api-key", "", "api key for quiz generation (env: QUIZBOX_OPENAI_API_KEY or OPENAI_API_KEY)")
	fs.StringVar(&cfg.openAIModel, "openai-model", "gpt-4o-mini", "model used for quiz generation (env: QUIZBOX_OPENAI_MODEL)")
	fs.StringVar(&cfg.openAIURL, "openai-url", "https://api.openai.com/v1", "base url of an openai-compatible api (env: QUIZBOX_OPENAI_URL)")
	fs.IntVar(&cfg.points, "points", 100, "points awarded for a correct answer (env: QUIZBOX_POINTS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIZBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZBOX_PROFILE)")
	fs.DurationVar(&cfg.providerTimeout, "provider-timeout", 45*time.Second, "time allowed for quiz generation (env: QUIZBOX_PROVIDER_TIMEOUT)")
	fs.StringVar(&cfg.questionBank, "question-bank", "", "path to a yaml question bank served before calling the api (env: QUIZBOX_QUESTION_BANK)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", 20*time.Second, "time allowed to answer each question (env: QUIZBOX_ROUND_DURATION)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle sessions are ended, 0 to disable (env: QUIZBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIZBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIZBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if f.Name == "openai-api-key" {
			_ = v.BindEnv(f.Name, "QUIZBOX_OPENAI_API_KEY", "OPENAI_API_KEY")
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
