// Command feedback drives the marketplace feedback dialog from a terminal.
//
//	feedback dialog                      interactive dialog (default)
//	feedback submit --rating 4 ...       one-shot scripted submission
//	feedback list --type performance     read back submissions
//	feedback version
//
// Settings come from --config (YAML), .env and FEEDBACK_* environment
// variables; see internal/config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
	"github.com/bluefermion/marketfeedback/internal/config"
	"github.com/bluefermion/marketfeedback/internal/feedback"
	"github.com/bluefermion/marketfeedback/internal/logging"
)

const version = "0.2.0"

// app holds what every subcommand shares once PersistentPreRunE has run.
type app struct {
	configPath string
	baseURL    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "feedback",
		Short:         "Marketplace feedback dialog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Feedback API base URL (or set FEEDBACK_API_BASE_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging (to LOG_FILE when set)")

	dialog := newDialogCmd(a)
	root.AddCommand(dialog, newSubmitCmd(a), newListCmd(a), newVersionCmd())
	root.RunE = dialog.RunE
	root.Flags().AddFlagSet(dialog.Flags())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	// The dialog owns the terminal, so logs only go somewhere when asked for.
	if a.verbose {
		cfg.Log.Level = "debug"
		a.logger, err = logging.New(cfg.Log)
	} else {
		a.logger, err = logging.Quiet(cfg.Log)
	}
	return err
}

func (a *app) client() (*apiclient.Client, error) {
	return apiclient.New(a.cfg.APIClient(a.logger))
}

func (a *app) machine() (*feedback.Machine, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	return feedback.New(client, a.cfg.Machine(a.logger)), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "feedback", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
