package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available layouts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registryFrom(cmd)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tORDER\tFIELDS")
		for _, lt := range reg.List() {
			s := lt.Schema
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\n", lt.TypeID, lt.Name, s.Size(), s.ByteOrder(), len(s.FieldNames()))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
