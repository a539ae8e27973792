package main

import (
	advisormcp "github.com/hyperengineering/advisor/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

Agents get the advisor_recommend, advisor_consult, advisor_enroll,
advisor_rules and advisor_curriculum tools. Suggestion references (S1, S2,
...) returned by a recommendation stay valid for the life of the server.

Example configuration:

  {
    "mcpServers": {
      "advisor": {
        "command": "advisor",
        "args": ["mcp"],
        "env": {
          "ADVISOR_PROGRAM": "computer-science"
        }
      }
    }
  }

Environment variables:
  ADVISOR_DB_PATH     Path to the student database
  ADVISOR_PROGRAM     Program whose database is used (default: default)
  ADVISOR_CURRICULUM  Curriculum file (default: bundled curriculum)
  ADVISOR_DEBUG       Log every inference to stderr`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	return advisormcp.NewServer(client).Run()
}
