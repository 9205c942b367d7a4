package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"haven/internal/conventional"
	"haven/internal/search"
	"haven/internal/termview"
	"haven/shared/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	var (
		query shared.CommitQuery
		fuzzy string
		kind  string
	)

	var commitsCmd = &cobra.Command{
		Use:   "commits",
		Short: "List commits with their review status",
		Long: `Lists one page of commits. --author, --since, --until, --status,
--branch and --search are applied by the backend, or locally to the
commits seen before when running with --offline or when the backend is
down (--branch needs the backend). --find ranks the page by fuzzy match
and --type keeps one conventional-commit type.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return listCommits(ctx, a, query, fuzzy, kind)
		}),
	}
	f := commitsCmd.Flags()
	f.IntVar(&query.RepositoryID, "repo", 0, "repository id")
	f.IntVar(&query.Page, "page", 1, "page number")
	f.IntVar(&query.PageSize, "page-size", 20, "commits per page")
	f.StringVar(&query.Search, "search", "", "backend message search")
	f.StringVar(&query.Author, "author", "", "author name or email")
	f.StringVar(&query.DateFrom, "since", "", "earliest commit date (YYYY-MM-DD)")
	f.StringVar(&query.DateTo, "until", "", "latest commit date (YYYY-MM-DD)")
	f.StringVar(&query.Status, "status", "", "review status")
	f.StringVar(&query.Branch, "branch", "", "branch name")
	f.StringVar(&fuzzy, "find", "", "fuzzy match on subject, hash and author")
	f.StringVar(&kind, "type", "", "conventional commit type, e.g. feat")

	var repoID int
	var showCmd = &cobra.Command{
		Use:   "show <commit-id|hash>",
		Short: "Show commit metadata",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			var (
				c   *shared.CommitInfo
				err error
			)
			if id, perr := strconv.Atoi(args[0]); perr == nil {
				c, err = a.client.GetCommit(ctx, id)
			} else {
				c, err = a.client.GetCommitByHash(ctx, args[0], repoID)
			}
			if err != nil {
				return fmt.Errorf("loading commit: %w", err)
			}

			h := conventional.Parse(c.Message)
			cyan := color.New(color.FgCyan).SprintFunc()
			fmt.Printf("%s %s\n", cyan("commit"), c.CommitHash)
			fmt.Printf("Author: %s <%s>\n", c.AuthorName, c.AuthorEmail)
			fmt.Printf("Date:   %s\n", c.CommittedAt.Format("2006-01-02 15:04:05 -0700"))
			if badge := conventional.Badge(c.Message); badge != "" {
				fmt.Printf("Type:   %s", badge)
				if h.Scope != "" {
					fmt.Printf(" (%s)", h.Scope)
				}
				fmt.Println()
			}
			fmt.Printf("\n    %s\n\n", c.Message)
			fmt.Printf("%d files changed, %d insertions(+), %d deletions(-)\n",
				c.DiffStats.FilesChanged, c.DiffStats.Insertions, c.DiffStats.Deletions)
			return nil
		}),
	}
	showCmd.Flags().IntVar(&repoID, "repo", 0, "repository id for hash lookups")

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Inspect a single commit",
	}
	commitCmd.AddCommand(showCmd)

	var repoCmd = &cobra.Command{
		Use:   "repo",
		Short: "Inspect repositories known to the backend",
	}

	var repoListCmd = &cobra.Command{
		Use:   "list",
		Short: "List repositories",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			repos, err := a.client.ListRepositories(ctx)
			if err != nil {
				return fmt.Errorf("listing repositories: %w", err)
			}
			for _, r := range repos {
				hash := ""
				if r.RepositoryHash != nil {
					hash = *r.RepositoryHash
				}
				fmt.Printf("%4d  %-30s %-10s %s\n", r.ID, r.FullName, r.Branch, hash)
			}
			return nil
		}),
	}

	var repoShowCmd = &cobra.Command{
		Use:   "show <hash>",
		Short: "Show one repository",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			r, err := a.client.GetRepository(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading repository: %w", err)
			}
			fmt.Printf("%s (%s)\n", r.FullName, r.URL)
			if r.Description != nil {
				fmt.Println(*r.Description)
			}
			branch := r.Branch
			if r.CurrentBranch != nil {
				branch = *r.CurrentBranch
			}
			fmt.Printf("branch %s, %d commits, %d branches\n", branch, r.CommitCount, r.BranchCount)
			return nil
		}),
	}

	var branchesCmd = &cobra.Command{
		Use:   "branches <identifier>",
		Short: "List a repository's branches",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			branches, err := a.client.ListBranches(ctx, args[0])
			if err != nil {
				return fmt.Errorf("listing branches: %w", err)
			}
			for _, b := range branches {
				fmt.Println(b)
			}
			return nil
		}),
	}

	var statsCmd = &cobra.Command{
		Use:   "stats <identifier>",
		Short: "Show repository statistics",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			s, err := a.client.RepositoryStats(ctx, args[0])
			if err != nil {
				return fmt.Errorf("loading stats: %w", err)
			}
			fmt.Printf("commits:  %d\nbranches: %d\n", s.TotalCommits, s.TotalBranches)
			if s.OldestCommitDate != nil && s.LatestCommitDate != nil {
				fmt.Printf("span:     %s .. %s\n", s.OldestCommitDate.Format("2006-01-02"), s.LatestCommitDate.Format("2006-01-02"))
			}
			return nil
		}),
	}

	var (
		branch string
		limit  int
	)
	var loadCmd = &cobra.Command{
		Use:   "load <identifier>",
		Short: "Ask the backend to import commits from a branch",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			req := shared.LoadCommitsRequest{Branch: branch}
			if limit > 0 {
				req.Limit = &limit
			}
			res, err := a.client.LoadCommits(ctx, args[0], req)
			if err != nil {
				return fmt.Errorf("loading commits: %w", err)
			}
			fmt.Printf("%s: %s\n", res.Status, res.Message)
			return nil
		}),
	}
	loadCmd.Flags().StringVar(&branch, "branch", "main", "branch to import")
	loadCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of commits (0 for the backend default)")

	repoCmd.AddCommand(repoListCmd, repoShowCmd, branchesCmd, statsCmd, loadCmd)

	var cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage the local snapshot of diffs and comments",
	}

	var cacheListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored diffs",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			docs, err := a.store.Documents()
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("Snapshot is empty")
				return nil
			}
			for _, d := range docs {
				fmt.Printf("%6d  %-10s %s  %s\n", d.CommitID, d.Document.Commit.ShortHash,
					d.FetchedAt.Format("2006-01-02 15:04"), d.Document.Commit.Summary)
			}
			return nil
		}),
	}

	var cachePurgeCmd = &cobra.Command{
		Use:   "purge <commit-id>",
		Short: "Drop the stored diff and comments of a commit",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.store.Purge(id)
		}),
	}

	cacheCmd.AddCommand(cacheListCmd, cachePurgeCmd)
	rootCmd.AddCommand(commitsCmd, commitCmd, repoCmd, cacheCmd)
}

// listCommits prints one page of commits matching q, ranked by find and
// narrowed to the conventional type kind.
func listCommits(ctx context.Context, a *app, q shared.CommitQuery, find, kind string) error {
	if _, _, err := search.ParseDate(q.DateFrom); err != nil {
		return err
	}
	if _, err := search.ParseUntil(q.DateTo); err != nil {
		return err
	}
	if q.Status != "" && !shared.ReviewStatus(q.Status).Valid() {
		return fmt.Errorf("invalid status %q", q.Status)
	}
	if kind != "" && !slices.Contains(conventional.Types(), strings.ToLower(kind)) {
		return fmt.Errorf("unknown commit type %q (want one of %s)", kind, strings.Join(conventional.Types(), ", "))
	}

	q.WithReviews = true
	page, fresh, err := a.source.Commits(ctx, q)
	if err != nil {
		return fmt.Errorf("listing commits: %w", err)
	}
	if fresh.Stale {
		color.New(color.FgYellow).Fprintln(os.Stderr, "showing commits seen before; the backend was not asked")
	}

	items := search.Filter{Type: kind}.Apply(page.Items)
	var rows []termview.CommitLine
	for _, m := range search.Search(items, find) {
		rows = append(rows, termview.CommitLine{
			Commit:  m.Commit,
			Badge:   conventional.Badge(m.Commit.Message),
			Subject: conventional.Parse(m.Commit.Message).Subject,
		})
	}
	a.out.Commits(rows)
	fmt.Printf("\npage %d of %d (%d commits)\n", page.Page, page.TotalPages, page.Total)
	return nil
}
