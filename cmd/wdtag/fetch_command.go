package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-wdtag/hub"
	"github.com/anatolykoptev/go-wdtag/internal/config"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the model and label table into the model cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if r := strings.TrimSpace(repo); r != "" {
				cfg.Model.Repo = r
			}
			modelPath, labelsPath, err := newFetcher(cfg).FetchModel(cmd.Context(), cfg.Model.Repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "model:  %s\n", modelPath)
			fmt.Fprintf(out, "labels: %s\n", labelsPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Model repository (owner/name)")
	return cmd
}

func newFetcher(cfg *config.Config) *hub.Fetcher {
	return &hub.Fetcher{
		Dir:      cfg.Model.Dir,
		Endpoint: cfg.Model.Endpoint,
		Token:    cfg.Model.Token,
	}
}
