package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/appnet-org/calpack/pkg/logging"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode <layout> [field=value...]",
	Short: "Build a packet from field values and print its bytes as hex",
	Long: `Build a packet from field values and print its bytes as hex. Fields
not given keep their defaults. Arrays take comma-separated elements and
nested packets take hex bytes.

Example:
  calpack encode UDPHeaderBig source_port=8080 dest_port=8080 length=2 checksum=0xbeef`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registryFrom(cmd)
		if err != nil {
			return err
		}
		s, err := reg.Schema(args[0])
		if err != nil {
			return err
		}
		vals, err := parseAssignments(s, args[1:])
		if err != nil {
			return err
		}
		p, err := s.New(vals)
		if err != nil {
			return err
		}
		logging.Debug("Encoded packet",
			zap.Stringer("packet", p),
			zap.Int("size", p.Len()))

		out := p.Bytes()
		if framed, _ := cmd.Flags().GetBool("framed"); framed {
			if out, err = reg.Encode(p); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().Bool("framed", false, "Prefix the output with the one-byte layout ID")
}
