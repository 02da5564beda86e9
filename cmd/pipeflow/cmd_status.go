package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/pipeflow/pipeline"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show node and parameter activation",
		Long: `Show which nodes and ports are activated and which pipeline parameters are
hidden, after applying --disable and --select.

Ports are listed as name:on when activated and name:off otherwise; a trailing > marks an
output port.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withSession(cmd, func(s *session) error {
				snap := s.pipeline.Snapshot()
				out := cmd.OutOrStdout()
				switch format {
				case "text":
					return writeStatus(out, snap, snap.Name)
				case "json":
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(snap)
				case "yaml":
					enc := yaml.NewEncoder(out)
					enc.SetIndent(2)
					if err := enc.Encode(snap); err != nil {
						return err
					}
					return enc.Close()
				default:
					return fmt.Errorf("unknown format %q (expected text, json or yaml)", format)
				}
			})
		},
	}
	cmd.Flags().String("format", "text", "Output format: text, json or yaml")
	return cmd
}

// writeStatus prints one table per pipeline level, nested levels after their parent.
func writeStatus(out io.Writer, snap *pipeline.Snapshot, path string) error {
	fmt.Fprintf(out, "pipeline %s\n", path)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tKIND\tENABLED\tACTIVATED\tPORTS\tDETAIL")
	var nested []*pipeline.NodeState
	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		if n.Kind == pipeline.KindRoot {
			continue
		}
		detail := ""
		switch n.Kind {
		case pipeline.KindSwitch:
			detail = "selected=" + n.Selected
		case pipeline.KindSubPipeline:
			if n.Inner != nil {
				detail = "pipeline=" + n.Inner.Name
				nested = append(nested, n)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%s\n", n.Name, n.Kind, n.Enabled, n.Activated, formatPorts(n.Ports), detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var hidden []string
	for _, pt := range snap.Root().Ports {
		if pt.Hidden {
			hidden = append(hidden, pt.Name)
		}
	}
	if len(hidden) > 0 {
		fmt.Fprintf(out, "hidden parameters: %s\n", strings.Join(hidden, ", "))
	}

	for _, n := range nested {
		fmt.Fprintln(out)
		if err := writeStatus(out, n.Inner, path+"/"+n.Name); err != nil {
			return err
		}
	}
	return nil
}

func formatPorts(ports []pipeline.PortState) string {
	parts := make([]string, 0, len(ports))
	for _, pt := range ports {
		state := "off"
		if pt.Activated {
			state = "on"
		}
		name := pt.Name
		if pt.Output {
			name += ">"
		}
		parts = append(parts, name+":"+state)
	}
	return strings.Join(parts, " ")
}
