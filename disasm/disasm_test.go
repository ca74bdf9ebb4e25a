package disasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisassembleSimpleSequence(t *testing.T) {
	// width 1: PUSH1 0x2A, PUSH1 0x00, MSTORE, PUSH1 0x20, PUSH1 0x00, RETURN
	lines, err := Disassemble("602a60005260206000f3", 1)
	require.NoError(t, err)
	require.Len(t, lines, 6)
	require.Equal(t, "PUSH", lines[0].Mnemonic)
	require.Equal(t, "2A", lines[0].Immediate)
	require.Equal(t, "MSTORE", lines[2].Mnemonic)
	require.Equal(t, "RETURN", lines[5].Mnemonic)
}

func TestDisassembleRendersUnknownOpcodeAsDoubleQuestionMark(t *testing.T) {
	// 0xff never appears in the fixed opcode table.
	lines, err := Disassemble("ff", 32)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "??", lines[0].Mnemonic)
}

func TestDisassemblePushConsumesConfiguredWidth(t *testing.T) {
	// width 2: PUSH opcode is 0x61, immediate is 2 bytes.
	lines, err := Disassemble("611234", 2)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "PUSH", lines[0].Mnemonic)
	require.Equal(t, "1234", lines[0].Immediate)
}

func TestDisassembleOffsetsAccumulate(t *testing.T) {
	lines, err := Disassemble("60016002", 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, 0, lines[0].Offset)
	require.Equal(t, 2, lines[1].Offset)
}

func TestFormatProducesOneLinePerInstruction(t *testing.T) {
	lines, err := Disassemble("0001", 32)
	require.NoError(t, err)
	out := Format(lines)
	require.Equal(t, "0000: STOP\n0001: ADD\n", out)
}
