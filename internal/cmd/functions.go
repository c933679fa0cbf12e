package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/formula"
)

func newFunctionsCmd(opts *rootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the built-in functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range formula.NewEngine(nil, cfg.EngineOptions()...).FunctionNames() {
				if strings.HasPrefix(name, strings.ToUpper(prefix)) {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Only list functions starting with this prefix")
	return cmd
}
