//go:build !exclude_headers
// +build !exclude_headers

package headers

import (
	"fmt"

	"github.com/appnet-org/calpack/pkg/packet"
)

func init() {
	// Register the header layouts with the default registry
	for _, s := range All() {
		if _, err := packet.DefaultRegistry.Register(s); err != nil {
			panic(fmt.Sprintf("Failed to register %s layout: %v", s.Name(), err))
		}
	}
}
