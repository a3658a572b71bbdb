package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/devbydaniel/watson/internal/mcp"
	"github.com/devbydaniel/watson/internal/version"
)

func NewMCPCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve meeting tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps.App
			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			s := mcp.NewServer(mcp.Deps{
				Backend:         a.Backend,
				Resummarize:     a.Resummarize,
				Retranscribe:    a.Retranscribe,
				Jobs:            a.Ledger,
				DefaultLanguage: deps.Config.DefaultLanguage,
			}, version.Version)
			return server.ServeStdio(s)
		},
	}
}
