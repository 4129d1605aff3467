package options

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maxgio92/privtrace/internal/settings"
)

const (
	FlagLogLevel = "log-level"
	FlagConfig   = "config"

	LogLevelInfo = "info"
)

type CommonOptions struct {
	Ctx      context.Context
	Logger   log.Logger
	LogLevel string
	Config   *viper.Viper
}

// NewConfig returns a configuration reading PRIVTRACE_* environment
// variables. Keys are flag names, with dashes mapped to underscores in the
// environment.
func NewConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(settings.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// ReadConfigFile loads path into the configuration. An empty path is a
// no-op.
func (o *CommonOptions) ReadConfigFile(path string) error {
	if path == "" {
		return nil
	}
	o.Config.SetConfigFile(path)
	if err := o.Config.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	o.Logger.Debug().Str("path", o.Config.ConfigFileUsed()).Msg("using config file")

	return nil
}

// Setup binds the command flags to the configuration, so that values set
// on the command line take precedence over the environment and the config
// file, and applies the log level.
func (o *CommonOptions) Setup(cmd *cobra.Command, component string) error {
	if o.Config == nil {
		o.Config = NewConfig()
	}
	if err := o.Config.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "failed to bind flags")
	}
	if err := o.ReadConfigFile(o.Config.GetString(FlagConfig)); err != nil {
		return err
	}

	o.LogLevel = o.Config.GetString(FlagLogLevel)
	logLevel, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel).With().Str("component", component).Logger()

	return nil
}
