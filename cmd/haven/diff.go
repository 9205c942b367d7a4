package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"haven/client"
	"haven/internal/comment"
	"haven/internal/diff"
	"haven/internal/render"
	"haven/internal/termview"
	"haven/internal/watch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	var (
		mode     string
		showKeys bool
	)

	var diffCmd = &cobra.Command{
		Use:   "diff <commit-id>",
		Short: "Show a commit's diff with inline comments",
		Long: `Fetches the diff of a commit and prints it in unified or split layout.
Comments appear under the lines they are anchored to. Use --keys to print
the key of every commentable line for "haven comment add".`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			m, err := diff.ParseMode(mode)
			if err != nil {
				return err
			}

			doc, fresh, err := a.source.Document(ctx, id)
			if err != nil {
				return fmt.Errorf("loading diff: %w", err)
			}
			list, _, err := a.source.Comments(ctx, id)
			if err != nil {
				logger.Warn("loading comments failed", zap.Error(err))
			}

			if fresh.Stale {
				color.New(color.FgYellow).Fprintf(os.Stderr, "showing stored copy from %s\n", fresh.FetchedAt.Format("2006-01-02 15:04"))
			}

			a.out.ShowKeys = showKeys
			a.out.View(render.Build(*doc, m, render.Options{Comments: comment.NewIndex(list)}))
			return nil
		}),
	}
	diffCmd.PersistentFlags().StringVarP(&mode, "mode", "m", "unified", "layout: unified or split")
	diffCmd.Flags().BoolVar(&showKeys, "keys", false, "print line keys of commentable lines")

	var (
		file     string
		watching bool
	)
	var renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Render a local diff-json file",
		Long:  `Renders a diff-json document from disk. With --watch the file is re-rendered every time it changes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := diff.ParseMode(mode)
			if err != nil {
				return err
			}
			out := termview.New(os.Stdout, terminalWidth())
			show := func() error {
				doc, err := readDocument(file)
				if err != nil {
					return err
				}
				if watching {
					fmt.Print("\033[H\033[2J")
				}
				out.View(render.Build(*doc, m, render.Options{}))
				return nil
			}

			if err := show(); err != nil {
				return err
			}
			if !watching {
				return nil
			}

			fw, err := watch.New(file, watch.DefaultDebounce, logger)
			if err != nil {
				return err
			}
			defer fw.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := fw.Run(ctx, show); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	renderCmd.Flags().StringVarP(&file, "file", "f", "", "diff-json file to render")
	renderCmd.Flags().BoolVarP(&watching, "watch", "w", false, "re-render when the file changes")
	renderCmd.MarkFlagRequired("file")

	var retries int
	var generateCmd = &cobra.Command{
		Use:   "generate <commit-id>",
		Short: "Ask the backend to (re)generate a commit's diff",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := a.client.GenerateDiff(ctx, id, client.WithRetry(retries))
			if err != nil {
				return fmt.Errorf("generating diff: %w", err)
			}
			if err := a.store.Purge(id); err != nil {
				logger.Warn("dropping stored diff failed", zap.Error(err))
			}
			fmt.Println("Diff generated:", res.DiffHTMLPath)
			return nil
		}),
	}
	generateCmd.Flags().IntVar(&retries, "retry", 0, "retry transient failures up to n times")

	var output string
	var htmlCmd = &cobra.Command{
		Use:   "html <commit-id>",
		Short: "Fetch the server-rendered HTML diff",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			html, err := a.client.GetDiffHTML(ctx, id)
			if err != nil {
				return fmt.Errorf("fetching diff html: %w", err)
			}
			if output == "" || output == "-" {
				fmt.Print(html)
				return nil
			}
			return os.WriteFile(output, []byte(html), 0644)
		}),
	}
	htmlCmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	diffCmd.AddCommand(renderCmd, generateCmd, htmlCmd)
	rootCmd.AddCommand(diffCmd)
}

func readDocument(path string) (*diff.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc diff.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &doc, nil
}
