package main

import (
	"context"
	"fmt"
	"strings"

	"haven/internal/comment"
	"haven/internal/diff"
	"haven/internal/render"
	"haven/shared/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	var commentCmd = &cobra.Command{
		Use:   "comment",
		Short: "Read and write inline comments",
	}

	var listCmd = &cobra.Command{
		Use:   "list <commit-id>",
		Short: "List a commit's comments",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			list, _, err := a.source.Comments(ctx, id)
			if err != nil {
				return fmt.Errorf("loading comments: %w", err)
			}
			a.out.Comments(list)
			return nil
		}),
	}

	var (
		key      string
		body     string
		reviewer int
	)
	var addCmd = &cobra.Command{
		Use:   "add <commit-id>",
		Short: "Comment on a diff line",
		Long: `Posts a comment on the line identified by --key, as printed by
"haven diff <commit-id> --keys" (add --mode split for left/right keys).
The comment list is fetched again after saving, so what is printed is
what the backend stored.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return addComment(ctx, a, id, diff.LineKey(key), body, reviewer)
		}),
	}
	addCmd.Flags().StringVarP(&key, "key", "k", "", "line key, e.g. f0:b1:l4 or f0:b1:l4:right")
	addCmd.Flags().StringVarP(&body, "body", "b", "", "comment text")
	addCmd.Flags().IntVarP(&reviewer, "reviewer", "r", 1, "reviewer id")
	addCmd.MarkFlagRequired("key")
	addCmd.MarkFlagRequired("body")

	commentCmd.AddCommand(listCmd, addCmd)

	var reviewCmd = &cobra.Command{
		Use:   "review",
		Short: "Read and record review verdicts",
	}

	var reviewListCmd = &cobra.Command{
		Use:   "list <commit-id>",
		Short: "List a commit's reviews",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			reviews, err := a.client.ListReviews(ctx, id)
			if err != nil {
				return fmt.Errorf("loading reviews: %w", err)
			}
			if len(reviews) == 0 {
				fmt.Println("No reviews")
				return nil
			}
			for _, r := range reviews {
				fmt.Printf("#%d reviewer %d %s  %s\n", r.ID, r.ReviewerID, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
				if r.Notes != nil && *r.Notes != "" {
					fmt.Printf("  %s\n", *r.Notes)
				}
			}
			return nil
		}),
	}

	var (
		status string
		notes  string
	)
	var reviewAddCmd = &cobra.Command{
		Use:   "add <commit-id>",
		Short: "Record a review verdict",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s := shared.ReviewStatus(status)
			if !s.Valid() {
				return fmt.Errorf("invalid status %q (want pending_review, approved, needs_revision or draft)", status)
			}
			r, err := a.client.CreateReview(ctx, id, shared.ReviewRequest{
				ReviewerID: reviewer,
				Status:     s,
				Notes:      notes,
			})
			if err != nil {
				return fmt.Errorf("saving review: %w", err)
			}
			fmt.Printf("Review #%d recorded: %s\n", r.ID, r.Status)
			return nil
		}),
	}
	reviewAddCmd.Flags().StringVarP(&status, "status", "s", "", "pending_review, approved, needs_revision or draft")
	reviewAddCmd.Flags().StringVarP(&notes, "notes", "n", "", "review notes")
	reviewAddCmd.Flags().IntVarP(&reviewer, "reviewer", "r", 1, "reviewer id")
	reviewAddCmd.MarkFlagRequired("status")

	reviewCmd.AddCommand(reviewListCmd, reviewAddCmd)
	rootCmd.AddCommand(commentCmd, reviewCmd)
}

// addComment resolves key against a fresh render of the commit and saves
// the comment through a review session. The file is printed again
// afterwards: with the new comment on success, with the composer still
// open and its error otherwise.
func addComment(ctx context.Context, a *app, commitID int, key diff.LineKey, body string, reviewerID int) error {
	mode := diff.Unified
	if strings.HasSuffix(string(key), ":left") || strings.HasSuffix(string(key), ":right") {
		mode = diff.Split
	}

	doc, _, err := a.source.Document(ctx, commitID)
	if err != nil {
		return fmt.Errorf("loading diff: %w", err)
	}

	session := comment.NewSession(commitID, a.source, logger)
	defer session.Close()
	if err := session.Refresh(ctx); err != nil {
		return err
	}

	view := render.Build(*doc, mode, render.Options{Comments: session.Index()})
	file, line, ok := view.Find(key)
	if !ok {
		return fmt.Errorf("no line %s in commit %d", key, commitID)
	}
	if !line.Commentable || line.Anchor == nil {
		return fmt.Errorf("line %s cannot take comments (only added and removed lines can)", key)
	}

	session.Toggle(key)
	saveErr := session.Save(ctx, key, comment.Draft{
		ReviewerID: reviewerID,
		FilePath:   file.Name,
		LineNumber: *line.Anchor,
		Content:    body,
	})

	view = render.Build(*doc, mode, render.Options{
		Comments: session.Index(),
		Active:   session.IsActive,
	})
	if f, _, ok := view.Find(key); ok {
		a.out.Failure = session.Failure
		a.out.File(f, mode)
	}
	if saveErr != nil {
		return saveErr
	}

	color.New(color.FgGreen).Printf("Comment saved on %s:%d\n", file.Name, *line.Anchor)
	return nil
}
