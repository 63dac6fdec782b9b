package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ragd/internal/config"
)

// cli carries what the persistent flags resolve to.
type cli struct {
	configPath string
	envFile    string
	server     string
	cfg        config.Config
	log        zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ragd",
		Short:         "Answer questions from local documents with a local model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (.yaml, .json or .toml); RAGD_* variables override it")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&c.server, "server", "http://localhost:8080", "Base URL of a running ragd server (status, switch)")

	root.AddCommand(
		newServeCmd(c),
		newIngestCmd(c),
		newAskCmd(c),
		newModelsCmd(c),
		newStatusCmd(c),
		newSwitchCmd(c),
	)
	return root
}

func (c *cli) init() error {
	if c.envFile != "" {
		// a missing .env is normal outside development
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = newLogger(cfg.Log, nil)
	return nil
}
