package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bluefermion/marketfeedback/internal/feedback"
	"github.com/bluefermion/marketfeedback/internal/tui"
)

func newDialogCmd(a *app) *cobra.Command {
	var (
		ctxFlags  contextFlags
		opts      feedback.Options
		autoClose time.Duration
		altScreen bool
	)

	cmd := &cobra.Command{
		Use:   "dialog",
		Short: "Open the interactive feedback dialog",
		Long: `Opens the feedback dialog in the terminal.

Keys: 1-5 rate, tab next field, left/right change type, ctrl+s submit,
e edit after submitting, esc close.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := ctxFlags.metaMap()
			if err != nil {
				return err
			}
			opts.Meta = meta
			if cmd.Flags().Changed("auto-close") {
				opts.AutoCloseDelay = feedback.AutoCloseAfter(autoClose)
			}

			machine, err := a.machine()
			if err != nil {
				return err
			}

			var progOpts []tea.ProgramOption
			if altScreen {
				progOpts = append(progOpts, tea.WithAltScreen())
			}
			return tui.Run(cmd.Context(), machine, opts, progOpts...)
		},
	}

	fs := cmd.Flags()
	ctxFlags.register(fs)
	fs.StringVar(&opts.Title, "title", "", "Dialog title")
	fs.StringVar(&opts.Subtitle, "subtitle", "", "Dialog subtitle")
	fs.StringVar(&opts.SubmitLabel, "submit-label", "", "Submit button label")
	fs.StringVar(&opts.SuccessTitle, "success-title", "", "Title shown after submitting")
	fs.StringVar(&opts.SuccessMessage, "success-message", "", "Message shown after submitting")
	fs.BoolVar(&opts.ShowRatingSummary, "summary", true, "Recap the submission on the success screen")
	fs.DurationVar(&autoClose, "auto-close", 0, "Close this long after a successful submit (unset: stay open)")
	fs.BoolVar(&altScreen, "alt-screen", false, "Use the terminal's alternate screen")
	return cmd
}
