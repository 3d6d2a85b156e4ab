package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/relaymcp/relay/examples/echo"
	"github.com/relaymcp/relay/examples/gated"
	"github.com/relaymcp/relay/examples/templated"
	"github.com/relaymcp/relay/registry"
	"github.com/relaymcp/relay/relay"
)

var (
	demoFlag   string
	configFlag string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Run, inspect, and install Model Context Protocol servers",
		Long: `Relay is the command-line front-end for the relay MCP server framework.

It runs a bundled demo server over stdio or HTTP, prints a server's
registered tools/resources/prompts, and writes a minimal host config stub
for third-party MCP clients to launch it.`,
	}

	root.PersistentFlags().StringVar(&demoFlag, "demo", "echo", "which bundled example server to use: echo, templated, gated")
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to an optional YAML server-definition file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newInstallCmd())

	return root
}

// buildDemoServer assembles the relay.Server named by demoFlag, applying
// any overrides from the YAML config file at configFlag.
func buildDemoServer() (*relay.Server, error) {
	fcfg, err := loadFileConfig(configFlag)
	if err != nil {
		return nil, err
	}

	var reg *registry.Registry
	name, version := "relay-demo", "0.1.0"
	switch demoFlag {
	case "templated":
		reg = templated.NewRegistry(templated.NewStore())
		name = "templated-example"
	case "gated":
		reg = gated.NewRegistry()
		name = "gated-example"
	default:
		reg = echo.NewRegistry()
		name = "echo-example"
	}

	opts := []relay.Option{relay.WithServerInfo(name, version)}
	if fcfg.ServerName != "" {
		name = fcfg.ServerName
	}
	if fcfg.Version != "" {
		version = fcfg.Version
	}
	opts[0] = relay.WithServerInfo(name, version)
	if fcfg.Instructions != "" {
		opts = append(opts, relay.WithInstructions(fcfg.Instructions))
	}
	if demoFlag == "gated" {
		opts = append(opts, relay.WithAuthProvider(gated.NewProvider()))
	}

	return relay.New(reg, opts...), nil
}

func newCLILogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
}
