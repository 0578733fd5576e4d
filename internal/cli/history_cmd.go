// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-stream/internal/export"
	"github.com/jeranaias/rigrun-stream/internal/model"
	"github.com/jeranaias/rigrun-stream/internal/storage"
	"github.com/jeranaias/rigrun-stream/internal/util"
)

func (a *App) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "List recorded renders or show one conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(cmd.Context(), a.cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				return a.showConversation(cmd.Context(), store, args[0])
			}
			return a.listConversations(cmd.Context(), store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum conversations to list (0 for all)")
	cmd.AddCommand(a.historyExportCmd())
	return cmd
}

func (a *App) historyExportCmd() *cobra.Command {
	var format, outputDir, theme string
	var toStdout, open, noMetadata bool

	cmd := &cobra.Command{
		Use:   "export <conversation-id>",
		Short: "Export a recorded render to markdown, html or json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = outputDir
			opts.OpenAfterExport = open
			opts.IncludeMetadata = !noMetadata
			opts.Theme = theme

			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return NewValidationErrorWithExample("format", format,
					"must be one of "+strings.Join(export.Formats(), ", "),
					"rigrun-stream history export <id> --format html")
			}

			store, err := storage.Open(cmd.Context(), a.cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			conv, err := store.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if toStdout {
				data, err := exporter.Export(conv)
				if err != nil {
					return err
				}
				_, err = a.Out.Write(data)
				return err
			}

			path, err := export.ExportToFile(conv, exporter, opts)
			if err != nil && path == "" {
				return err
			}
			if err != nil {
				a.logger.Warn("exported file could not be opened", "path", path, "error", err)
			}
			if a.jsonOutput {
				return NewJSONResponse("history export", map[string]string{"path": path, "mime_type": exporter.MimeType()}).Print(a.Out)
			}
			fmt.Fprintf(a.Out, "Exported %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Export format (markdown, html, json)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	cmd.Flags().StringVar(&theme, "theme", "dark", "HTML theme (dark, light)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Write the document to stdout instead of a file")
	cmd.Flags().BoolVar(&open, "open", false, "Open the exported file")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "Omit the metadata header and stats")
	return cmd
}

func (a *App) listConversations(ctx context.Context, store *storage.MessageStore, limit int) error {
	convs, err := store.ListConversations(ctx, limit)
	if err != nil {
		return err
	}
	if a.jsonOutput {
		return NewJSONResponse("history", convs).Print(a.Out)
	}
	if len(convs) == 0 {
		fmt.Fprintln(a.Out, mutedStyle.Render("No recorded renders."))
		return nil
	}

	fmt.Fprintln(a.Out, headerStyle.Render("Recorded renders"))
	for _, c := range convs {
		fmt.Fprintf(a.Out, "%s  %s  %s  %s\n",
			labelStyle.Render(c.ID),
			c.UpdatedAt.Local().Format("2006-01-02 15:04"),
			util.PadRight(fmt.Sprintf("%d msg", c.MessageCount), 7),
			util.TruncateWidth(c.Title, 50),
		)
	}
	return nil
}

func (a *App) showConversation(ctx context.Context, store *storage.MessageStore, id string) error {
	conv, err := store.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if a.jsonOutput {
		return NewJSONResponse("history", conv).Print(a.Out)
	}

	fmt.Fprintln(a.Out, headerStyle.Render(conv.Title))
	fmt.Fprintln(a.Out, mutedStyle.Render(conv.ID+"  "+conv.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	for _, msg := range conv.Messages {
		fmt.Fprintln(a.Out)
		status := string(msg.Status)
		if stats := msg.FormatStats(); stats != "" {
			status += " | " + stats
		}
		fmt.Fprintf(a.Out, "%s %s\n", labelStyle.Render(msg.Role.DisplayName()), mutedStyle.Render("("+status+")"))
		fmt.Fprintln(a.Out, msg.Content)
		if msg.Status == model.StatusInterrupted {
			fmt.Fprintln(a.Out, mutedStyle.Render("[interrupted]"))
		}
	}
	return nil
}
