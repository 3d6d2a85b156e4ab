package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaymcp/relay/registry"
)

var inspectFormat string

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a server's registered tools, resources, and prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect()
		},
	}
	cmd.Flags().StringVar(&inspectFormat, "format", "text", "output format: text, json")
	return cmd
}

// inspectSummary is the JSON shape emitted by --format json.
type inspectSummary struct {
	Tools             []string `json:"tools"`
	Resources         []string `json:"resources"`
	ResourceTemplates []string `json:"resourceTemplates"`
	Prompts           []string `json:"prompts"`
}

func runInspect() error {
	srv, err := buildDemoServer()
	if err != nil {
		return err
	}
	reg := srv.Registry()

	summary := summarize(reg)

	if inspectFormat == "json" {
		b, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	printSection("Tools", summary.Tools)
	printSection("Resources", summary.Resources)
	printSection("Resource templates", summary.ResourceTemplates)
	printSection("Prompts", summary.Prompts)
	return nil
}

func summarize(reg *registry.Registry) inspectSummary {
	var s inspectSummary
	for _, t := range reg.Tools() {
		s.Tools = append(s.Tools, t.Descriptor.Name)
	}
	for _, r := range reg.Resources() {
		s.Resources = append(s.Resources, r.Descriptor.URI)
	}
	for _, t := range reg.ResourceTemplates() {
		s.ResourceTemplates = append(s.ResourceTemplates, t.Descriptor.URITemplate)
	}
	for _, p := range reg.Prompts() {
		s.Prompts = append(s.Prompts, p.Descriptor.Name)
	}
	return s
}

func printSection(title string, items []string) {
	fmt.Printf("%s:\n", title)
	if len(items) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
