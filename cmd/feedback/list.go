package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
	"github.com/bluefermion/marketfeedback/internal/feedback"
	"github.com/bluefermion/marketfeedback/internal/model"
)

const commentWidth = 40

func newListCmd(a *app) *cobra.Command {
	var (
		limit, offset int
		feedbackType  string
		role, userID  string
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted feedback, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			if feedbackType != "" {
				t, ok := feedback.ParseType(feedbackType)
				if !ok {
					return fmt.Errorf("%w: %q", feedback.ErrInvalidType, feedbackType)
				}
				q.Set("feedback_type", t.Wire())
			}
			if role != "" {
				q.Set("user_type", role)
			}
			if userID != "" {
				q.Set("user_id", userID)
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			var list []*model.Feedback
			if err := client.Do(cmd.Context(), a.cfg.Feedback.Endpoint, apiclient.RequestOptions{Query: q}, &list); err != nil {
				return fmt.Errorf("%s: %w", feedback.UserMessage(err), err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No feedback yet.")
				return nil
			}
			fmt.Fprintln(out, renderTable(list))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&limit, "limit", 0, "Maximum records to return")
	fs.IntVar(&offset, "offset", 0, "Records to skip")
	fs.StringVarP(&feedbackType, "type", "t", "", "Only this feedback type")
	fs.StringVar(&role, "role", "", "Only this user type (farmer, consumer, driver, admin, anonymous)")
	fs.StringVar(&userID, "user", "", "Only this user id")
	fs.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func renderTable(list []*model.Feedback) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "RATING", "TYPE", "ROLE", "COMMENT", "CREATED")
	for _, f := range list {
		typeLabel := f.FeedbackType
		if parsed, ok := feedback.ParseType(f.FeedbackType); ok {
			typeLabel = parsed.Label()
		}
		t.Row(
			strconv.FormatInt(f.ID, 10),
			fmt.Sprintf("%d/%d", f.Rating, feedback.MaxRating),
			typeLabel,
			f.UserType,
			truncate(f.Comment, commentWidth),
			f.CreatedAt.Local().Format(time.DateTime),
		)
	}
	return t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
