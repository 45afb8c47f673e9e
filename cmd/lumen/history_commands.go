package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lumen/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past recognition sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(ctx, cmd)
		},
	}

	historyCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(ctx, cmd)
		},
	})
	historyCmd.AddCommand(&cobra.Command{
		Use:   "show <entry>",
		Short: "Show one session's full narration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(ctx, cmd, args[0])
		},
	})
	historyCmd.AddCommand(&cobra.Command{
		Use:   "delete <entry>",
		Short: "Delete one session from the log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryDelete(ctx, cmd, args[0])
		},
	})

	return historyCmd
}

func loadHistoryEntries(ctx *commandContext, cmdCtx context.Context) ([]history.Entry, func() error, error) {
	logger, err := ctx.newLogger()
	if err != nil {
		return nil, nil, err
	}
	store, _, err := ctx.openHistory(logger)
	if err != nil {
		return nil, nil, err
	}
	entries, err := store.LoadAll(cmdCtx)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return entries, store.Close, nil
}

func runHistoryList(ctx *commandContext, cmd *cobra.Command) error {
	entries, closeStore, err := loadHistoryEntries(ctx, cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history yet.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			truncate(entry.Artwork.Title, 40),
			truncate(entry.Artwork.Artist, 30),
			fmt.Sprintf("%.2f", entry.Confidence),
			entry.Language,
			entry.CreatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]tableColumn{
		{Header: "#", Numeric: true},
		{Header: "Title", MaxWidth: 40},
		{Header: "Artist", MaxWidth: 30},
		{Header: "Conf", Numeric: true},
		{Header: "Lang"},
		{Header: "Recorded"},
	}, rows))
	return nil
}

func runHistoryShow(ctx *commandContext, cmd *cobra.Command, arg string) error {
	index, err := parseEntryNumber(arg)
	if err != nil {
		return err
	}
	entries, closeStore, err := loadHistoryEntries(ctx, cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	if index >= len(entries) {
		return fmt.Errorf("entry %d out of range (only %d entries exist)", index+1, len(entries))
	}
	entry := entries[index]
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s — %s", entry.Artwork.Title, entry.Artwork.Artist)
	if entry.Artwork.Year != "" {
		fmt.Fprintf(out, " (%s)", entry.Artwork.Year)
	}
	fmt.Fprintln(out)
	if entry.Artwork.Style != "" {
		fmt.Fprintf(out, "Style: %s\n", entry.Artwork.Style)
	}
	if entry.Artwork.Museum != "" {
		fmt.Fprintf(out, "Museum: %s\n", entry.Artwork.Museum)
	}
	fmt.Fprintf(out, "Recorded: %s  Language: %s  Confidence: %.2f\n",
		entry.CreatedAt.Local().Format(time.DateTime), entry.Language, entry.Confidence)
	if entry.PhotoPath != "" {
		fmt.Fprintf(out, "Photo: %s\n", entry.PhotoPath)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, entry.Narration)
	if entry.ArtistIntroduction != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, entry.ArtistIntroduction)
	}
	return nil
}

func runHistoryDelete(ctx *commandContext, cmd *cobra.Command, arg string) error {
	index, err := parseEntryNumber(arg)
	if err != nil {
		return err
	}
	logger, err := ctx.newLogger()
	if err != nil {
		return err
	}
	store, _, err := ctx.openHistory(logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), index); err != nil {
		return fmt.Errorf("delete entry %d: %w", index+1, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %d.\n", index+1)
	return nil
}

func parseEntryNumber(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid entry number %q", arg)
	}
	return n - 1, nil
}
