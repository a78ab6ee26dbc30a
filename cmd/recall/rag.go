package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/recall/client"
)

func newRAGCmd(opts *rootOptions) *cobra.Command {
	var (
		collectionID string
		limit        int
		stream       bool
		showSources  bool
	)
	cmd := &cobra.Command{
		Use:   "rag <query>...",
		Short: "Ask a retrieval-augmented question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			ragOpts := client.RAGOptions{CollectionID: collectionID, Limit: limit}
			if !stream {
				result, err := c.Completion(cmd.Context(), query, ragOpts)
				if err != nil {
					return err
				}
				if showSources {
					printSources(cmd, result.Results)
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Completion)
				return nil
			}
			return streamRAG(cmd, c, query, ragOpts, showSources)
		},
	}
	cmd.Flags().StringVar(&collectionID, "collection", "", "restrict retrieval to one collection")
	cmd.Flags().IntVar(&limit, "limit", 0, "max sources (server default when 0)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the answer as it is generated")
	cmd.Flags().BoolVar(&showSources, "sources", false, "print retrieved sources")
	return cmd
}

func streamRAG(cmd *cobra.Command, c *client.Client, query string, opts client.RAGOptions, showSources bool) error {
	stream, err := c.RAG(cmd.Context(), query, opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	out := cmd.OutOrStdout()
	printed := 0
	for event := range stream.Events() {
		switch e := event.(type) {
		case client.SourcesEvent:
			if showSources {
				printSources(cmd, e.Sources)
			}
		case client.TextDeltaEvent:
			// Each event carries the whole text so far; print the tail.
			fmt.Fprint(out, e.Text[printed:])
			printed = len(e.Text)
		case client.DoneEvent:
			fmt.Fprintln(out)
		case client.ErrorEvent:
			return e.Err
		}
	}
	return nil
}

func printSources(cmd *cobra.Command, sources []client.Source) {
	out := cmd.OutOrStdout()
	for i, src := range sources {
		text := src.DisplayText()
		if len(text) > 80 {
			text = text[:77] + "..."
		}
		fmt.Fprintf(out, "[%d] %.2f %s\n", i+1, src.Score, text)
	}
	fmt.Fprintln(out)
}
