// Package disasm renders emitted bytecode back to a human-readable listing:
// one line per instruction, offset-prefixed, unknown opcodes shown as "??"
// rather than aborting the walk. It knows nothing about the generator's
// internal Handle/context machinery — it only needs an address width and a
// byte stream, so it works equally well on a fresh Generate() result or on
// bytes read back from a file.
package disasm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"fstroke"
)

// mnemonicByOpcode is the inverse of the generator's fixed opcode table,
// built once at package init. PUSH is handled separately since its encoding
// depends on the configured address width.
var mnemonicByOpcode = map[byte]fstroke.Mnemonic{
	0x00: fstroke.STOP,
	0x01: fstroke.ADD,
	0x02: fstroke.MUL,
	0x03: fstroke.SUB,
	0x04: fstroke.DIV,
	0x06: fstroke.MOD,
	0x08: fstroke.ADDMOD,
	0x09: fstroke.MULMOD,
	0x0a: fstroke.EXP,
	0x10: fstroke.LT,
	0x11: fstroke.GT,
	0x12: fstroke.SLT,
	0x13: fstroke.SGT,
	0x14: fstroke.EQ,
	0x15: fstroke.ISZERO,
	0x16: fstroke.AND,
	0x17: fstroke.OR,
	0x18: fstroke.XOR,
	0x19: fstroke.NOT,
	0x35: fstroke.CALLDATALOAD,
	0x51: fstroke.MLOAD,
	0x52: fstroke.MSTORE,
	0x56: fstroke.JUMP,
	0x57: fstroke.JUMPI,
	0x5b: fstroke.JUMPDEST,
	0x80: fstroke.DUP1,
	0x81: fstroke.DUP2,
	0x90: fstroke.SWAP1,
	0xf3: fstroke.RETURN,
}

// Line is one disassembled instruction.
type Line struct {
	Offset    int
	Mnemonic  string // resolved mnemonic, or "??" for an unrecognized byte
	Immediate string // hex, present only for PUSH
}

func (l Line) String() string {
	if l.Immediate != "" {
		return fmt.Sprintf("%04x: %-8s 0x%s", l.Offset, l.Mnemonic, l.Immediate)
	}
	return fmt.Sprintf("%04x: %s", l.Offset, l.Mnemonic)
}

// Disassemble walks a hex-encoded bytecode string, treating the byte
// 0x60+width-1 as the configured PUSH opcode and consuming width bytes of
// immediate after it. Any other unrecognized byte is emitted as a
// single "??" line and the walk advances by one byte, so a corrupt or
// foreign stream never aborts the listing early.
func Disassemble(hexStr string, width int) ([]Line, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("fstroke/disasm: %w", err)
	}

	pushOp := byte(0x60 + width - 1)
	var lines []Line
	for i := 0; i < len(raw); {
		offset := i
		op := raw[i]
		i++

		switch {
		case op == pushOp:
			imm := []byte{}
			if end := i + width; end <= len(raw) {
				imm = raw[i:end]
				i = end
			} else {
				imm = raw[i:]
				i = len(raw)
			}
			lines = append(lines, Line{Offset: offset, Mnemonic: string(fstroke.PUSH), Immediate: strings.ToUpper(hex.EncodeToString(imm))})
		default:
			m, ok := mnemonicByOpcode[op]
			if !ok {
				lines = append(lines, Line{Offset: offset, Mnemonic: "??"})
				continue
			}
			lines = append(lines, Line{Offset: offset, Mnemonic: string(m)})
		}
	}
	return lines, nil
}

// Format renders lines as a newline-separated listing.
func Format(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
