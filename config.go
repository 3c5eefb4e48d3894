package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/sticky/checkins"
	"github.com/Seednode/sticky/games"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	dbDriver       string
	dbPath         string
	maxPhotoSize   int
	natsSubject    string
	natsURL        string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.dbDriver != checkins.DriverSQLite && c.dbDriver != checkins.DriverPostgres {
		return fmt.Errorf("invalid database driver (must be %q or %q): %q", checkins.DriverSQLite, checkins.DriverPostgres, c.dbDriver)
	}
	if c.dbPath == "" {
		return errors.New("--db must not be empty")
	}
	if c.maxPhotoSize < 1024 {
		return fmt.Errorf("invalid max photo size (must be at least 1024 bytes): %d", c.maxPhotoSize)
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
	v.SetEnvPrefix("STICKY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sticky",
		Short:         "A daily check-in: win a random mini-game, then snap a photo.",
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: STICKY_BIND)")
	fs.StringVar(&cfg.dbPath, "db", "sticky.db", "database file (sqlite) or connection string (postgres) (env: STICKY_DB)")
	fs.StringVar(&cfg.dbDriver, "db-driver", checkins.DriverSQLite, "database driver, sqlite or postgres (env: STICKY_DB_DRIVER)")
	fs.IntVar(&cfg.maxPhotoSize, "max-photo-size", games.DefaultMaxPhotoSize, "largest accepted camera frame, in bytes (env: STICKY_MAX_PHOTO_SIZE)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", checkins.DefaultSubject, "subject to publish check-in events on (env: STICKY_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "nats server to publish check-in events to, if any (env: STICKY_NATS_URL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: STICKY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: STICKY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: STICKY_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 30*time.Minute, "time before idle challenges are ended (env: STICKY_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: STICKY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: STICKY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: STICKY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: STICKY_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sticky v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
