package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/recall/client"
)

func newDocumentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage documents",
	}
	cmd.AddCommand(
		newDocumentsListCmd(opts),
		newDocumentsCreateCmd(opts),
		newDocumentsDeleteCmd(opts),
		newDocumentsExportCmd(opts),
	)
	return cmd
}

func newDocumentsListCmd(opts *rootOptions) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			page, err := c.Documents.List(cmd.Context(), client.ListOptions{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tSIZE")
			for _, doc := range page.Results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", doc.ID, doc.Title, doc.IngestionStatus, doc.SizeBytes)
			}
			tw.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(page.Results), page.Pagination.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")
	return cmd
}

func newDocumentsCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		title         string
		filePath      string
		rawText       string
		collectionIDs []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Ingest a document from a file or raw text",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			doc, err := c.Documents.Create(cmd.Context(), client.CreateDocumentRequest{
				Title:         title,
				FilePath:      filePath,
				RawText:       rawText,
				CollectionIDs: collectionIDs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created document %s (%s)\n", doc.ID, doc.IngestionStatus)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&filePath, "file", "", "file to upload")
	cmd.Flags().StringVar(&rawText, "text", "", "raw text content")
	cmd.Flags().StringSliceVar(&collectionIDs, "collection", nil, "collection id (repeatable)")
	return cmd
}

func newDocumentsDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if err := c.Documents.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}

func newDocumentsExportCmd(opts *rootOptions) *cobra.Command {
	var (
		outPath  string
		columns  []string
		noHeader bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the document listing as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}
			return c.Documents.Export(cmd.Context(), out, client.ExportOptions{
				Columns:       columns,
				IncludeHeader: !noHeader,
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to include (default id,owner_id,title,content_type,ingestion_status,size_bytes,created_at)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit the header row")
	return cmd
}
