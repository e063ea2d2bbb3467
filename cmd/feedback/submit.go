package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bluefermion/marketfeedback/internal/feedback"
)

var errNoSubmission = errors.New("feedback was not recorded; the dialog closed before the service answered")

func newSubmitCmd(a *app) *cobra.Command {
	var (
		ctxFlags contextFlags
		rating   int
		comment  string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit feedback without the interactive dialog",
		Example: `  feedback submit --rating 4 --comment "Great service"
  feedback submit -r 2 -t transactional --meta order_id=ord-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := ctxFlags.metaMap()
			if err != nil {
				return err
			}
			machine, err := a.machine()
			if err != nil {
				return err
			}

			// Same path as the dialog: open, fill the draft, submit.
			machine.Open(feedback.Options{Meta: meta})
			defer machine.Close()

			if err := machine.SetRating(rating); err != nil {
				return err
			}
			if err := machine.SetComment(comment); err != nil {
				return err
			}
			if err := machine.Submit(cmd.Context()); err != nil {
				return fmt.Errorf("%s: %w", machine.Snapshot().Error, err)
			}

			return printSubmitted(cmd.OutOrStdout(), machine.Snapshot())
		},
	}

	fs := cmd.Flags()
	ctxFlags.register(fs)
	fs.IntVarP(&rating, "rating", "r", 0, "Rating from 1 to 5")
	fs.StringVarP(&comment, "comment", "m", "", "Comment (up to 1000 characters)")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

// printSubmitted reports the last submission. A submit whose answer arrived
// after the dialog was closed leaves nothing to report.
func printSubmitted(out io.Writer, snap feedback.Snapshot) error {
	d := snap.LastSubmitted
	if d == nil {
		return errNoSubmission
	}
	fmt.Fprintf(out, "Feedback submitted (id %s)\n", or(snap.LastSubmittedID, "unknown"))
	fmt.Fprintf(out, "  %s, %d/%d\n", d.Type.Label(), d.Rating, feedback.MaxRating)
	return nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
