package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var installOutput string

// hostConfigStub is a minimal MCP host config entry describing how to
// launch the stdio transport for this server. It intentionally does not
// attempt to detect or target a specific host application.
type hostConfigStub struct {
	MCPServers map[string]hostServerEntry `json:"mcpServers"`
}

type hostServerEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write a minimal host config stub for launching this server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall()
		},
	}
	cmd.Flags().StringVar(&installOutput, "output", "relay.mcp.json", "path to write the host config stub to")
	return cmd
}

func runInstall() error {
	stub := hostConfigStub{
		MCPServers: map[string]hostServerEntry{
			demoFlag: {
				Command: "relay",
				Args:    []string{"run", "--demo", demoFlag, "--transport", "stdio"},
			},
		},
	}

	b, err := json.MarshalIndent(stub, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(installOutput, b, 0o644); err != nil {
		return fmt.Errorf("write host config: %w", err)
	}
	fmt.Printf("wrote %s\n", installOutput)
	return nil
}
