package cmd

import (
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/abhisek/hangeul/internal/api"
	"github.com/abhisek/hangeul/internal/config"
	"github.com/abhisek/hangeul/internal/logging"
)

// env is the configuration and backend client shared by every command.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	client   api.Client
}

// loadEnv reads configuration and builds the logger and API client. The TUI
// owns the terminal, so with toFile set the log goes to a file even when
// none is configured.
func loadEnv(cmd *cobra.Command, toFile bool) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if base, _ := cmd.Flags().GetString("api"); base != "" {
		cfg.API.BaseURL = base
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.API.ClientVersion == "" {
		cfg.API.ClientVersion = version
	}

	logOpts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}
	if toFile && logOpts.File == "" {
		if logOpts.File, err = logging.DefaultLogFile(); err != nil {
			return nil, err
		}
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	client := api.WithRetry(api.NewHTTPClient(api.Options{
		BaseURL:       cfg.API.BaseURL,
		Token:         cfg.API.Token,
		ClientVersion: cfg.API.ClientVersion,
		Timeout:       cfg.API.Timeout,
		Logger:        logger,
	}), api.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		InitialWait: cfg.Retry.InitialWait,
		MaxWait:     cfg.Retry.MaxWait,
		Multiplier:  cfg.Retry.Multiplier,
	})

	return &env{cfg: cfg, logger: logger, closeLog: closeLog, client: client}, nil
}

func (e *env) Close() error {
	return e.closeLog()
}

// host is the backend host shown in the TUI header.
func (e *env) host() string {
	u, err := url.Parse(e.cfg.API.BaseURL)
	if err != nil || u.Host == "" {
		return e.cfg.API.BaseURL
	}
	return u.Host
}
