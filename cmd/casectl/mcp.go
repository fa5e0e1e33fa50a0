package main

import (
	"os"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/case-study-search/internal/adapters/mcp"
)

func newMCPCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the ask and resolve tools over MCP stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
ask_case_studies and resolve_case_study tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			srv := mcpadapter.NewServer(app.Answer, app.Resolve, app.Logger)
			return srv.ServeStdio(cmd.Context(), os.Stdin, os.Stdout, os.Stderr)
		},
	}
}
