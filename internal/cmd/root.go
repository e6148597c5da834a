// Package cmd implements the myt command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jsalmi/mytgo/internal/log"
	"github.com/jsalmi/mytgo/pkg/config"
	"github.com/jsalmi/mytgo/pkg/myt"
	"github.com/jsalmi/mytgo/pkg/session"
	"github.com/jsalmi/mytgo/pkg/snapshot"
)

// Authentication endpoint defaults for the newer login flow.
const (
	defaultAuthHost    = "https://b2c-login.toyota-europe.com"
	defaultClientID    = "oneapp"
	defaultRedirectURI = "com.toyota.oneapp:/oauth2Callback"
)

var rootCmd = &cobra.Command{
	Use:           "myt",
	Short:         "Fetch and report personal vehicle telemetry",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(func() {
		log.Init(viper.GetBool("debug"))
	})

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")
	rootCmd.PersistentFlags().String("cache-dir", "", "Cache directory (overrides configuration)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("cache-dir", rootCmd.PersistentFlags().Lookup("cache-dir"))

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(statsCmd)
}

// app bundles the wired-up collaborators a command run needs.
type app struct {
	cfg      *config.Config
	sessions *session.Manager
	client   *myt.Client
}

// setup loads configuration and wires the session manager, snapshot
// store and API client.
func setup() (*app, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if dir := viper.GetString("cache-dir"); dir != "" {
		cfg.CacheDir = dir
	}
	if err := cfg.ResolvePassword(); err != nil {
		log.Debug("keyring lookup did not yield a password")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := snapshot.New(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	flow := &session.Flow{
		AuthHost:    defaultAuthHost,
		ClientID:    defaultClientID,
		RedirectURI: defaultRedirectURI,
		Username:    cfg.Username,
		Password:    cfg.Password,
	}
	sessions := session.NewManager(cfg.CacheDir, flow)
	return &app{
		cfg:      cfg,
		sessions: sessions,
		client:   myt.NewClient(cfg, sessions, store),
	}, nil
}

// Execute runs the command tree.
func Execute() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
