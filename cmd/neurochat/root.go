package main

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/neurochat/pkg/client"
	"github.com/go-go-golems/neurochat/pkg/config"
	"github.com/go-go-golems/neurochat/pkg/token"
)

type rootFlags struct {
	configPath string
	serverURL  string
	logLevel   string
}

// loadConfig layers flag overrides over the config file over the defaults.
func (f *rootFlags) loadConfig() (config.Config, error) {
	path := f.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Default(), err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if f.serverURL != "" {
		cfg.ServerURL = f.serverURL
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

func (f *rootFlags) tokenStore(cfg config.Config) (token.Store, error) {
	path := cfg.TokenPath
	if path == "" {
		p, err := token.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return token.NewFileStore(path), nil
}

func (f *rootFlags) apiClient(cfg config.Config) (*client.Client, token.Store, error) {
	tokens, err := f.tokenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client.New(cfg.ServerURL, tokens, client.WithTimeout(cfg.RequestTimeout.Std())), tokens, nil
}

func initLogging(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(parsed)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

func NewRootCmd() (*cobra.Command, error) {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "neurochat",
		Short: "Terminal client for the NeuroChat assistant service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			return initLogging(cfg.LogLevel)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&flags.serverURL, "server", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: trace|debug|info|warn|error")

	rootCmd.AddCommand(
		newChatCmd(flags),
		newLoginCmd(flags),
		newLogoutCmd(flags),
		newServeCmd(),
		newSessionsCmd(flags),
		newMeCmd(flags),
	)
	return rootCmd, nil
}
