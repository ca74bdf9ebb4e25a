package fstroke

import (
	"fmt"
	"math/big"
	"strings"
)

// hexPad renders v as upper-case hex, zero-padded to exactly width
// characters. Immediates in this generator can be up to 32 bytes (256 bits)
// wide, wider than a uint64, so literal values travel as *big.Int.
func hexPad(v *big.Int, width int) string {
	s := strings.ToUpper(v.Text(16))
	if len(s) > width {
		// Caller is expected to have range-checked; this only defends
		// against a programmer error in the generator itself.
		panic(fmt.Sprintf("value %s does not fit in %d hex chars", s, width))
	}
	return strings.Repeat("0", width-len(s)) + s
}
