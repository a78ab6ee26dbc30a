package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/recall/client"
)

func newCollectionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage collections",
	}
	cmd.AddCommand(
		newCollectionsListCmd(opts),
		newCollectionsCreateCmd(opts),
		newCollectionsAddCmd(opts),
	)
	return cmd
}

func newCollectionsListCmd(opts *rootOptions) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			page, err := c.Collections.List(cmd.Context(), client.ListOptions{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDOCUMENTS")
			for _, col := range page.Results {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", col.ID, col.Name, col.DocumentCount)
			}
			tw.Flush()
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")
	return cmd
}

func newCollectionsCreateCmd(opts *rootOptions) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			col, err := c.Collections.Create(cmd.Context(), client.CollectionRequest{
				Name:        args[0],
				Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created collection %s\n", col.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "collection description")
	return cmd
}

func newCollectionsAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <collection-id> <document-id>",
		Short: "Add a document to a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if err := c.Collections.AddDocument(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "added")
			return nil
		},
	}
}
