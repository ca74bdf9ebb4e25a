package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeClassifiesEachByte(t *testing.T) {
	toks := Tokenize("(a1 )")
	kinds := make([]Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	require.Equal(t, []Kind{LP, Letter, Digit, Space, RP, EOF}, kinds)
}

func TestTokenizeAlwaysEndsInEOF(t *testing.T) {
	for _, src := range []string{"", "(", "x", "   "} {
		toks := Tokenize(src)
		require.NotEmpty(t, toks)
		require.Equal(t, EOF, toks[len(toks)-1].Kind)
		require.Equal(t, len(src), toks[len(toks)-1].Pos)
	}
}

func TestTokenizeNeverErrorsOnUnknownBytes(t *testing.T) {
	toks := Tokenize("a$b")
	require.Equal(t, []Kind{Letter, Unknown, Letter, EOF}, []Kind{toks[0].Kind, toks[1].Kind, toks[2].Kind, toks[3].Kind})
}

func TestTokenPositionsAreByteOffsets(t *testing.T) {
	toks := Tokenize("ab cd")
	require.Equal(t, 0, toks[0].Pos)
	require.Equal(t, 3, toks[3].Pos)
}
