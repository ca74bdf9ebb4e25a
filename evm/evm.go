// Package evm is a minimal interpreter for the EVM-subset bytecode fstroke
// emits: enough opcodes to execute the S1-S6 scenarios end to end and check
// their return values, nothing more. It exists only to give the compiler's
// test suite a way to verify emitted bytecode actually computes the right
// answer; fstroke itself never executes anything it generates (compilers
// don't run their own output). Structured the way gvm's VM type is: a
// fetch-decode-execute loop over a flat instruction stream plus a small set
// of sentinel errors for abnormal termination, adapted here to stack-based
// 256-bit words and byte-addressable memory instead of gvm's 32-bit
// register file.
package evm

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrStackUnderflow is returned when an opcode needs more operands than
	// the stack currently holds.
	ErrStackUnderflow = errors.New("evm: stack underflow")
	// ErrUnknownOpcode is returned when the instruction stream contains a
	// byte that doesn't decode under the configured address width.
	ErrUnknownOpcode = errors.New("evm: unknown opcode")
	// ErrInvalidJumpDest is returned when JUMP/JUMPI targets an offset that
	// isn't a JUMPDEST.
	ErrInvalidJumpDest = errors.New("evm: invalid jump destination")
	// ErrOutOfBounds is returned when the program counter runs off the end
	// of the code without hitting STOP or RETURN.
	ErrOutOfBounds = errors.New("evm: program counter out of bounds")
)

const wordBytes = 32

var wordMod = new(big.Int).Lsh(big.NewInt(1), 256)

func mod256(v *big.Int) *big.Int {
	r := new(big.Int).Mod(v, wordMod)
	if r.Sign() < 0 {
		r.Add(r, wordMod)
	}
	return r
}

// Machine executes one EVM-subset program against one calldata buffer. It
// is not safe for concurrent use; create one per run.
type Machine struct {
	code     []byte
	width    int
	pushOp   byte
	calldata []byte

	pc     int
	stack  []*big.Int
	memory []byte
	halted bool
	result []byte

	steps    int
	maxSteps int
}

// NewMachine builds a Machine for code (raw bytes, not hex) compiled at the
// given PUSH address width. maxSteps bounds runaway loops in test fixtures;
// 0 means the default of 1,000,000 steps.
func NewMachine(code []byte, width int, maxSteps int) *Machine {
	if maxSteps <= 0 {
		maxSteps = 1_000_000
	}
	return &Machine{
		code:     code,
		width:    width,
		pushOp:   byte(0x60 + width - 1),
		maxSteps: maxSteps,
	}
}

// Run executes the program against calldata until STOP, RETURN, or an
// error. On RETURN it returns the returned memory region; on STOP it
// returns nil.
func (m *Machine) Run(calldata []byte) ([]byte, error) {
	m.calldata = calldata
	for !m.halted {
		if err := m.step(); err != nil {
			return nil, err
		}
		m.steps++
		if m.steps > m.maxSteps {
			return nil, fmt.Errorf("evm: exceeded %d steps without halting", m.maxSteps)
		}
	}
	return m.result, nil
}

func (m *Machine) push(v *big.Int) { m.stack = append(m.stack, mod256(v)) }

func (m *Machine) pop() (*big.Int, error) {
	n := len(m.stack)
	if n == 0 {
		return nil, ErrStackUnderflow
	}
	v := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return v, nil
}

func boolWord(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

func (m *Machine) ensureMemory(end int) {
	if end > len(m.memory) {
		grown := make([]byte, end)
		copy(grown, m.memory)
		m.memory = grown
	}
}

// isJumpdest reports whether offset lands exactly on a JUMPDEST byte, not
// merely a byte that happens to equal 0x5b inside a PUSH immediate.
func (m *Machine) isJumpdest(offset int64) bool {
	if offset < 0 || offset >= int64(len(m.code)) {
		return false
	}
	i := 0
	for i < len(m.code) {
		if int64(i) == offset {
			return m.code[i] == 0x5b
		}
		if m.code[i] == m.pushOp {
			i += 1 + m.width
		} else {
			i++
		}
	}
	return false
}

func (m *Machine) step() error {
	if m.pc < 0 || m.pc >= len(m.code) {
		return ErrOutOfBounds
	}
	op := m.code[m.pc]

	if op == m.pushOp {
		start := m.pc + 1
		end := start + m.width
		if end > len(m.code) {
			return ErrOutOfBounds
		}
		m.push(new(big.Int).SetBytes(m.code[start:end]))
		m.pc = end
		return nil
	}

	switch op {
	case 0x00: // STOP
		m.halted = true
		return nil
	case 0x01, 0x02, 0x03, 0x04, 0x06: // ADD, MUL, SUB, DIV, MOD
		a, err := m.pop()
		if err != nil {
			return err
		}
		b, err := m.pop()
		if err != nil {
			return err
		}
		var r *big.Int
		switch op {
		case 0x01:
			r = new(big.Int).Add(a, b)
		case 0x02:
			r = new(big.Int).Mul(a, b)
		case 0x03:
			r = new(big.Int).Sub(a, b)
		case 0x04:
			if b.Sign() == 0 {
				r = big.NewInt(0)
			} else {
				r = new(big.Int).Div(a, b)
			}
		case 0x06:
			if b.Sign() == 0 {
				r = big.NewInt(0)
			} else {
				r = new(big.Int).Mod(a, b)
			}
		}
		m.push(r)
	case 0x10, 0x11, 0x14: // LT, GT, EQ
		a, err := m.pop()
		if err != nil {
			return err
		}
		b, err := m.pop()
		if err != nil {
			return err
		}
		switch op {
		case 0x10:
			m.push(boolWord(a.Cmp(b) < 0))
		case 0x11:
			m.push(boolWord(a.Cmp(b) > 0))
		case 0x14:
			m.push(boolWord(a.Cmp(b) == 0))
		}
	case 0x15: // ISZERO
		a, err := m.pop()
		if err != nil {
			return err
		}
		m.push(boolWord(a.Sign() == 0))
	case 0x16, 0x17, 0x18: // AND, OR, XOR
		a, err := m.pop()
		if err != nil {
			return err
		}
		b, err := m.pop()
		if err != nil {
			return err
		}
		switch op {
		case 0x16:
			m.push(new(big.Int).And(a, b))
		case 0x17:
			m.push(new(big.Int).Or(a, b))
		case 0x18:
			m.push(new(big.Int).Xor(a, b))
		}
	case 0x19: // NOT
		a, err := m.pop()
		if err != nil {
			return err
		}
		m.push(new(big.Int).Xor(a, new(big.Int).Sub(wordMod, big.NewInt(1))))
	case 0x35: // CALLDATALOAD
		off, err := m.pop()
		if err != nil {
			return err
		}
		m.push(new(big.Int).SetBytes(loadWindow(m.calldata, off.Int64(), wordBytes)))
	case 0x51: // MLOAD
		addr, err := m.pop()
		if err != nil {
			return err
		}
		a := int(addr.Int64())
		m.ensureMemory(a + wordBytes)
		m.push(new(big.Int).SetBytes(m.memory[a : a+wordBytes]))
	case 0x52: // MSTORE
		addr, err := m.pop()
		if err != nil {
			return err
		}
		val, err := m.pop()
		if err != nil {
			return err
		}
		a := int(addr.Int64())
		m.ensureMemory(a + wordBytes)
		buf := make([]byte, wordBytes)
		val.FillBytes(buf)
		copy(m.memory[a:a+wordBytes], buf)
	case 0x56: // JUMP
		dest, err := m.pop()
		if err != nil {
			return err
		}
		if !m.isJumpdest(dest.Int64()) {
			return ErrInvalidJumpDest
		}
		m.pc = int(dest.Int64())
		return nil
	case 0x57: // JUMPI
		dest, err := m.pop()
		if err != nil {
			return err
		}
		cond, err := m.pop()
		if err != nil {
			return err
		}
		if cond.Sign() != 0 {
			if !m.isJumpdest(dest.Int64()) {
				return ErrInvalidJumpDest
			}
			m.pc = int(dest.Int64())
			return nil
		}
	case 0x5b: // JUMPDEST
		// no-op landing pad
	case 0x80: // DUP1
		n := len(m.stack)
		if n < 1 {
			return ErrStackUnderflow
		}
		m.push(new(big.Int).Set(m.stack[n-1]))
	case 0x81: // DUP2
		n := len(m.stack)
		if n < 2 {
			return ErrStackUnderflow
		}
		m.push(new(big.Int).Set(m.stack[n-2]))
	case 0x90: // SWAP1
		n := len(m.stack)
		if n < 2 {
			return ErrStackUnderflow
		}
		m.stack[n-1], m.stack[n-2] = m.stack[n-2], m.stack[n-1]
	case 0xf3: // RETURN
		off, err := m.pop()
		if err != nil {
			return err
		}
		length, err := m.pop()
		if err != nil {
			return err
		}
		a, l := int(off.Int64()), int(length.Int64())
		m.ensureMemory(a + l)
		m.result = append([]byte(nil), m.memory[a:a+l]...)
		m.halted = true
		return nil
	default:
		return fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, op, m.pc)
	}

	m.pc++
	return nil
}

// loadWindow reads length bytes starting at offset from src, zero-padding
// past the end exactly like CALLDATALOAD's real semantics.
func loadWindow(src []byte, offset int64, length int) []byte {
	out := make([]byte, length)
	if offset < 0 || offset >= int64(len(src)) {
		return out
	}
	n := copy(out, src[offset:])
	_ = n
	return out
}
