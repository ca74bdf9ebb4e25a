package fstroke

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"fstroke/ast"
	"fstroke/evm"
)

// compile parses and lowers src at the default 32-byte address width, the
// scale EVM itself uses, and returns the raw (non-hex) bytecode.
func compile(t *testing.T, src string) []byte {
	t.Helper()
	tree, err := ast.Parse(src)
	require.NoError(t, err)

	gen, err := NewGenerator(32)
	require.NoError(t, err)

	hexOut, err := gen.Generate(tree)
	require.NoError(t, err)

	raw, err := hex.DecodeString(hexOut)
	require.NoError(t, err)
	return raw
}

// runReturning compiles and executes src, returning the 256-bit result word
// returned by RETURN.
func runReturning(t *testing.T, src string, calldata []byte) *big.Int {
	t.Helper()
	code := compile(t, src)
	m := evm.NewMachine(code, 32, 0)
	out, err := m.Run(calldata)
	require.NoError(t, err)
	require.Len(t, out, 32)
	return new(big.Int).SetBytes(out)
}

func calldataWords(words ...int64) []byte {
	buf := make([]byte, 32*len(words))
	for i, w := range words {
		b := big.NewInt(w).Bytes()
		copy(buf[32*(i+1)-len(b):32*(i+1)], b)
	}
	return buf
}

func TestIdentityProgram(t *testing.T) {
	got := runReturning(t, `(prog ((return 42)))`, nil)
	require.Equal(t, int64(42), got.Int64())
}

func TestReadAndArithmetic(t *testing.T) {
	src := `(prog ((setq x (read 0)) (setq y (read 1)) (return (plus x y))))`
	got := runReturning(t, src, calldataWords(1, 2))
	require.Equal(t, int64(3), got.Int64())
}

func TestConditional(t *testing.T) {
	src := `(prog ((cond (equal (read 0) 0) (return 1) (return 2))))`
	require.Equal(t, int64(1), runReturning(t, src, calldataWords(0)).Int64())
	require.Equal(t, int64(2), runReturning(t, src, calldataWords(7)).Int64())
}

func TestLoopWithBreak(t *testing.T) {
	src := `(prog ((setq i 0) (while (less i 10) ((cond (equal i 5) (break) (setq i (plus i 1))))) (return i)))`
	got := runReturning(t, src, nil)
	require.Equal(t, int64(5), got.Int64())
}

func TestUserFunction(t *testing.T) {
	src := `(func add (a b) ((return (plus a b)))) (prog ((return (add 2 3))))`
	got := runReturning(t, src, nil)
	require.Equal(t, int64(5), got.Int64())
}

func TestUserFunctionHasOneEntryJumpdest(t *testing.T) {
	tree, err := ast.Parse(`(func add (a b) ((return (plus a b)))) (prog ((return (add 2 3))))`)
	require.NoError(t, err)
	gen, err := NewGenerator(32)
	require.NoError(t, err)
	hexOut, err := gen.Generate(tree)
	require.NoError(t, err)
	require.NotEmpty(t, hexOut)

	entry, ok := gen.registry.lookup("add")
	require.True(t, ok)

	jumpdests := 0
	for _, e := range gen.buf.Entries() {
		if e.Mnemonic == JUMPDEST && e.Offset == entry {
			jumpdests++
		}
	}
	require.Equal(t, 1, jumpdests, "exactly one JUMPDEST at add's registry entry")
}

func TestRecursion(t *testing.T) {
	src := `(func fact (n) ((cond (equal n 0) (return 1) (return (times n (fact (minus n 1))))))) (prog ((return (fact 5))))`
	got := runReturning(t, src, nil)
	require.Equal(t, int64(120), got.Int64())
}

func TestUnresolvedCallIsRejected(t *testing.T) {
	tree, err := ast.Parse(`(prog ((return (mystery 1))))`)
	require.NoError(t, err)
	gen, err := NewGenerator(32)
	require.NoError(t, err)
	_, err = gen.Generate(tree)
	require.ErrorIs(t, err, ErrUnresolvableName)
}

func TestBreakOutsideLoopIsRejected(t *testing.T) {
	tree, err := ast.Parse(`(prog ((break)))`)
	require.NoError(t, err)
	gen, err := NewGenerator(32)
	require.NoError(t, err)
	_, err = gen.Generate(tree)
	require.ErrorIs(t, err, ErrMalformedTree)
}

func TestMissingProgIsRejected(t *testing.T) {
	tree, err := ast.Parse(`(func f (x) ((return x)))`)
	require.NoError(t, err)
	gen, err := NewGenerator(32)
	require.NoError(t, err)
	_, err = gen.Generate(tree)
	require.ErrorIs(t, err, ErrMalformedTree)
}

func TestLiteralOverflowIsRejected(t *testing.T) {
	tree, err := ast.Parse(`(prog ((return 999999999999999999999999999999999999999)))`)
	require.NoError(t, err)
	gen, err := NewGenerator(1)
	require.NoError(t, err)
	_, err = gen.Generate(tree)
	require.ErrorIs(t, err, ErrUnsupportedLiteral)
}

func TestInstructionTableRejectsOutOfRangeWidth(t *testing.T) {
	_, err := NewInstructionTable(0)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewInstructionTable(33)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestInstructionTablePushOpcode(t *testing.T) {
	table, err := NewInstructionTable(1)
	require.NoError(t, err)
	require.Equal(t, byte(0x60), table.PushOpcode())

	table, err = NewInstructionTable(32)
	require.NoError(t, err)
	require.Equal(t, byte(0x7f), table.PushOpcode())
}

func TestSerializeRoundTripsPushImmediate(t *testing.T) {
	table, err := NewInstructionTable(2)
	require.NoError(t, err)
	buf := NewOpcodeBuffer(table)
	buf.Append(PUSH, big.NewInt(0x1234))
	out, err := buf.Serialize()
	require.NoError(t, err)
	require.Equal(t, "611234", out)
}
