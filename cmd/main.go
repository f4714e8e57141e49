package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inbox-autoresponder/internal/config"
	"inbox-autoresponder/internal/logging"
	"inbox-autoresponder/internal/models"
)

// secretEnv names the environment variable holding the mailbox app password
const secretEnv = "AUTOREPLY_SECRET"

var (
	configPath   string
	addressFlag  string
	phoneFlag    string
	logLevelFlag string

	cfg *models.Config
)

var rootCmd = &cobra.Command{
	Use:   "autoreply",
	Short: "Watch a mailbox and send one automated reply per new sender",
	Long: `autoreply polls an IMAP mailbox for unseen messages and answers each new
sender once per session over SMTP.

The mailbox password is read from $AUTOREPLY_SECRET or prompted for.
It is never written to disk.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&addressFlag, "address", "a", "", "Mailbox address (prompted when empty)")
	rootCmd.PersistentFlags().StringVar(&phoneFlag, "phone", "", "Urgent contact phone included in replies")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and the logger shared by every subcommand.
// A missing default config file falls back to built-in defaults.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config"):
		loaded = config.Default()
	default:
		return fmt.Errorf("reading configuration: %w", err)
	}

	if logLevelFlag != "" {
		loaded.Logging.Level = logLevelFlag
	}
	if err := logging.Configure(loaded.Logging.Level, loaded.Logging.Format); err != nil {
		return err
	}

	cfg = loaded
	return nil
}
