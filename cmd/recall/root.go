package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/recall/client"
)

const defaultServerURL = "http://127.0.0.1:7348"

type rootOptions struct {
	serverURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "recall",
		Short:         "Recall retrieval server and client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("RECALL_SERVER", defaultServerURL), "server base URL")

	cmd.AddCommand(
		newServeCmd(),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newDocumentsCmd(opts),
		newCollectionsCmd(opts),
		newRAGCmd(opts),
		newSystemCmd(opts),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// newClient builds a client with the persistent session store so logins
// survive between invocations.
func (o *rootOptions) newClient() (*client.Client, error) {
	store, err := client.DefaultTokenStore()
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return client.New(o.serverURL, client.WithTokenStore(store), client.WithUserAgent("recall-cli")), nil
}
