// Package headers declares the UDP and TCP headers as packet layouts.
//
// Each header comes in three byte orders: the native layout and Big and
// Little variants extending it. Bit-fields follow the packet package rule
// and fill their byte from the least significant bit, so data_offset sits
// in the low nibble of byte 12.
//
// The TCP header is laid out with C alignment: its fields end at byte 18
// and two bytes of tail padding round it up to 20.
package headers

import "github.com/appnet-org/calpack/pkg/packet"

var (
	UDPHeader = packet.NewBuilder("UDPHeader").
			Field("source_port", packet.Int16()).
			Field("dest_port", packet.Int16()).
			Field("length", packet.Int16()).
			Field("checksum", packet.Int16()).
			MustBuild()

	UDPHeaderBig = packet.NewBuilder("UDPHeaderBig").
			Extends(UDPHeader).
			ByteOrder(packet.BigEndian).
			MustBuild()

	UDPHeaderLittle = packet.NewBuilder("UDPHeaderLittle").
			Extends(UDPHeader).
			ByteOrder(packet.LittleEndian).
			MustBuild()
)

// TCPFlags lists the one-bit control flags in declaration order.
var TCPFlags = []string{
	"flag_ns", "flag_cwr", "flag_ece", "flag_urg", "flag_ack",
	"flag_psh", "flag_rst", "flag_syn", "flag_fin",
}

var (
	TCPHeader = tcpHeader()

	TCPHeaderBig = packet.NewBuilder("TCPHeaderBig").
			Extends(TCPHeader).
			ByteOrder(packet.BigEndian).
			MustBuild()

	TCPHeaderLittle = packet.NewBuilder("TCPHeaderLittle").
			Extends(TCPHeader).
			ByteOrder(packet.LittleEndian).
			MustBuild()
)

func tcpHeader() *packet.Schema {
	b := packet.NewBuilder("TCPHeader").
		Field("source_port", packet.Int16()).
		Field("dest_port", packet.Int16()).
		Field("seq_num", packet.Int32()).
		Field("ack_num", packet.Int32()).
		Field("data_offset", packet.Int8(packet.Bits(4))).
		Field("reserved", packet.Int8(packet.Bits(3)))
	for _, name := range TCPFlags {
		b.Field(name, packet.Int8(packet.Bits(1)))
	}
	return b.
		Field("window_size", packet.Int16()).
		Field("checksum", packet.Int16()).
		Aligned().
		MustBuild()
}

// All returns every header layout, native variants first.
func All() []*packet.Schema {
	return []*packet.Schema{
		UDPHeader, UDPHeaderBig, UDPHeaderLittle,
		TCPHeader, TCPHeaderBig, TCPHeaderLittle,
	}
}
