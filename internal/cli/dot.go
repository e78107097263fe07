package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/comalice/safetyx/internal/production"
)

var (
	dotConfig string
	dotFormat string
)

func init() {
	rootCmd.AddCommand(dotCmd)
	dotCmd.Flags().StringVarP(&dotConfig, "config", "c", "", "Safety configuration YAML (default: bundled robot)")
	dotCmd.Flags().StringVarP(&dotFormat, "format", "f", "dot", "Output format (dot|json)")
}

var dotCmd = &cobra.Command{
	Use:   "dot",
	Short: "Export the level graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDot(cmd.OutOrStdout(), dotConfig, dotFormat)
	},
}

func runDot(out io.Writer, path, format string) error {
	m, _, err := loadMachine(path, 0, nil)
	if err != nil {
		return err
	}
	v := &production.DefaultVisualizer{}
	switch format {
	case "json":
		data, err := v.ExportJSON(m)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "dot":
		fmt.Fprint(out, v.ExportDOT(m))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}
