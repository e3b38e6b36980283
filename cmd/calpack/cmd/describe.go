package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// describeCmd represents the describe command
var describeCmd = &cobra.Command{
	Use:   "describe <layout>",
	Short: "Show the computed placement of every field of a layout",
	Long: `Show the computed placement of every field of a layout.

Example:
  calpack describe TCPHeaderBig`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := schemaFrom(cmd, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d bytes, %s endian", s.Name(), s.Size(), s.ByteOrder())
		if s.Aligned() {
			fmt.Fprintf(out, ", aligned to %d", s.Alignment())
		}
		if base := s.Base(); base != nil {
			fmt.Fprintf(out, ", extends %s", base.Name())
		}
		fmt.Fprintln(out)

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FIELD\tTYPE\tBYTE\tBIT\tBITS\tDEFAULT")
		for _, f := range s.Fields() {
			def := "-"
			if d := f.Spec.Default(); d != nil {
				def = fmt.Sprint(d)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", f.Name, f.Spec, f.ByteOffset, f.BitOffset, f.Bits, def)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
