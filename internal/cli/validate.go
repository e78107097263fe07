package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var validateConfig string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateConfig, "config", "c", "", "Safety configuration YAML (default: bundled robot)")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration and print each level's shutdown path",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), validateConfig)
	},
}

func runValidate(out io.Writer, path string) error {
	m, period, err := loadMachine(path, 0, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d levels, period %v, entry %s, off %s\n",
		m.Name(), len(m.Levels()), period, m.EntryLevel().Name(), m.OffLevel().Name())

	for _, l := range m.Levels() {
		path, ok := m.ShutdownPath(l)
		switch {
		case l == m.OffLevel():
			fmt.Fprintf(out, "  %2d %-18s off\n", l.ID(), l.Name())
		case !ok:
			fmt.Fprintf(out, "  %2d %-18s unreachable\n", l.ID(), l.Name())
		default:
			names := make([]string, len(path))
			for i, e := range path {
				names[i] = e.Name()
			}
			fmt.Fprintf(out, "  %2d %-18s %s\n", l.ID(), l.Name(), strings.Join(names, " -> "))
		}
	}
	return nil
}
