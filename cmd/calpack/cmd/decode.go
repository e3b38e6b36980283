package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appnet-org/calpack/pkg/packet"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <layout> <hex>",
	Short: "Decode hex bytes as a packet of a layout",
	Long: `Decode hex bytes as a packet of a layout. Spaces and colons in the
hex string are ignored. With --framed the layout is read from the first byte
and only the hex argument is given.

Example:
  calpack decode UDPHeaderBig "1f90 1f90 0002 beef"
  calpack decode --framed 021f901f900002beef`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registryFrom(cmd)
		if err != nil {
			return err
		}
		framed, _ := cmd.Flags().GetBool("framed")

		var p *packet.Packet
		if framed {
			if len(args) != 1 {
				return fmt.Errorf("--framed takes only the hex argument")
			}
			data, err := parseHex(args[0])
			if err != nil {
				return err
			}
			if p, _, err = reg.Decode(data); err != nil {
				return err
			}
		} else {
			if len(args) != 2 {
				return fmt.Errorf("decode needs a layout and a hex argument")
			}
			s, err := reg.Schema(args[0])
			if err != nil {
				return err
			}
			data, err := parseHex(args[1])
			if err != nil {
				return err
			}
			if p, err = s.FromBytes(data); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().Bool("framed", false, "Input starts with a one-byte layout ID")
}
