package main

import (
	"context"
	"fmt"
	"os"

	"haven/internal/validation"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	var recordCmd = &cobra.Command{
		Use:   "record",
		Short: "Manage free-form JSON records",
		Long: `Records are JSON objects kept by the backend next to the review data.
They are always read from and written to the backend; --offline does not
apply.`,
	}

	var limit, offset int
	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List one page of records",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return listRecords(ctx, a, limit, offset)
		}),
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, fmt.Sprintf("records per page (1-%d)", validation.MaxRecordLimit))
	listCmd.Flags().IntVar(&offset, "offset", 0, "records to skip")

	var getCmd = &cobra.Command{
		Use:   "get <record-id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			r, err := a.client.GetRecord(ctx, id)
			if err != nil {
				return fmt.Errorf("loading record: %w", err)
			}
			a.out.Record(*r)
			return nil
		}),
	}

	var data, file string
	var createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a record from a JSON object",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return createRecord(ctx, a, data, file)
		}),
	}

	var merge bool
	var updateCmd = &cobra.Command{
		Use:   "update <record-id>",
		Short: "Replace a record's data, or merge into it with --merge",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return updateRecord(ctx, a, args[0], data, file, merge)
		}),
	}
	updateCmd.Flags().BoolVar(&merge, "merge", false, "merge the given keys instead of replacing the data")

	for _, cmd := range []*cobra.Command{createCmd, updateCmd} {
		cmd.Flags().StringVar(&data, "data", "", "record data as a JSON object")
		cmd.Flags().StringVar(&file, "file", "", "read the JSON object from a file")
		cmd.MarkFlagsMutuallyExclusive("data", "file")
		cmd.MarkFlagsOneRequired("data", "file")
	}

	var deleteCmd = &cobra.Command{
		Use:   "delete <record-id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteRecord(ctx, id); err != nil {
				return fmt.Errorf("deleting record: %w", err)
			}
			color.Green("Record %s deleted", id)
			return nil
		}),
	}

	recordCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
	rootCmd.AddCommand(recordCmd)
}

func listRecords(ctx context.Context, a *app, limit, offset int) error {
	if err := validation.RecordPage(limit, offset); err != nil {
		return err
	}
	list, err := a.client.ListRecords(ctx, limit, offset)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	a.out.Records(*list)
	return nil
}

func createRecord(ctx context.Context, a *app, data, file string) error {
	obj, err := readRecordData(data, file)
	if err != nil {
		return err
	}
	r, err := a.client.CreateRecord(ctx, obj)
	if err != nil {
		return fmt.Errorf("creating record: %w", err)
	}
	a.out.Record(*r)
	return nil
}

func updateRecord(ctx context.Context, a *app, rawID, data, file string, merge bool) error {
	id, err := parseRecordID(rawID)
	if err != nil {
		return err
	}
	obj, err := readRecordData(data, file)
	if err != nil {
		return err
	}

	write := a.client.UpdateRecord
	if merge {
		write = a.client.PatchRecord
	}
	r, err := write(ctx, id, obj)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	a.out.Record(*r)
	return nil
}

// readRecordData loads the JSON object given inline or in file and
// checks it before anything is sent.
func readRecordData(data, file string) (map[string]any, error) {
	raw := []byte(data)
	if file != "" {
		var err error
		if raw, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("reading record data: %w", err)
		}
	}
	return validation.RecordData(raw)
}

func parseRecordID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}
