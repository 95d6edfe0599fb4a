package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"posterhelper/internal/config"
	"posterhelper/internal/logging"
	"posterhelper/internal/services/plex"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	logCloser  io.Closer
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// ensureLogger builds the session logger on first use and writes the session
// banner.
func (c *commandContext) ensureLogger(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		sessionID := logging.NewSessionID()
		logger, closer, err := logging.NewFromConfig(cfg, sessionID)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logging: %w", err)
			return
		}
		c.logger = logger
		c.logCloser = closer

		attrs := []logging.Attr{
			logging.String("command", cmd.CommandPath()),
			logging.String("config", c.configPath),
			logging.String("data_dir", cfg.Paths.DataDir),
		}
		if path := cfg.LogFilePath(); path != "" {
			attrs = append(attrs, logging.String("log_file", path), logging.Bool("append", cfg.Logging.Append))
		}
		logger.Info("posterhelper session started", logging.Args(attrs...)...)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) close() error {
	if c.logCloser == nil {
		return nil
	}
	err := c.logCloser.Close()
	c.logCloser = nil
	return err
}

// plexClient builds a client from the configured connection, falling back to
// the token and server linked through "auth link".
func (c *commandContext) plexClient(logger *slog.Logger) (*plex.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	auth, err := plex.NewAuthenticator(cfg.AuthStatePath())
	if err != nil {
		return nil, fmt.Errorf("load plex link state: %w", err)
	}
	resolved := *cfg
	if resolved.Plex.Token == "" {
		resolved.Plex.Token = auth.Token()
	}
	if resolved.Plex.URL == "" {
		resolved.Plex.URL = auth.ServerURL()
	}
	if err := resolved.RequirePlex(); err != nil {
		return nil, err
	}
	return plex.NewClient(plex.Options{
		BaseURL:           resolved.Plex.URL,
		Token:             resolved.Plex.Token,
		ClientIdentifier:  auth.ClientIdentifier(),
		Timeout:           config.Seconds(float64(resolved.Plex.RequestTimeout)),
		RequestsPerSecond: resolved.Plex.RequestsPerSecond,
		Logger:            logger,
	})
}

// withLock runs fn while holding the single-instance lock that serializes
// batch runs and resets.
func (c *commandContext) withLock(fn func() error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another posterhelper run is already in progress")
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
