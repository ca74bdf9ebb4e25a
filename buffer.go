package fstroke

import (
	"fmt"
	"math/big"
	"strings"
)

// entry is one opcode in the emitted stream. id is the byte offset at which
// it appears in the final stream; it is assigned once, at Append time, and
// never renumbered. immediate, when present, is already zero-padded hex.
type entry struct {
	id        int
	mnemonic  Mnemonic
	immediate string // "" unless mnemonic == PUSH
}

// Handle addresses one previously-appended entry for later patching. It is
// the generator's equivalent of the Design Notes' reserve_push()/resolve()
// pair: Append returns a Handle, and Patch consumes it, so callers never
// poke at raw buffer indices.
type Handle int

// OpcodeBuffer is an append-only sequence of opcode entries plus the running
// byte counter used to assign the next entry's id. It implements the
// generator's single source of truth for "what has been emitted so far."
type OpcodeBuffer struct {
	table   InstructionTable
	entries []entry
	offset  int
}

// NewOpcodeBuffer returns an empty buffer bound to the given instruction
// table. A fresh buffer must be used per compilation run; the byte counter
// lives on the buffer value itself rather than a package-level global, so
// multiple Generators can run concurrently in one process.
func NewOpcodeBuffer(table InstructionTable) *OpcodeBuffer {
	return &OpcodeBuffer{table: table}
}

// Append allocates a new entry with id equal to the current byte counter,
// advances the counter by the mnemonic's width, and returns a Handle for
// later patching. If mnemonic is PUSH and immediate is nil, the immediate
// defaults to zero (a placeholder to be Patch-ed once its true value is
// known). immediate is ignored for every other mnemonic.
func (b *OpcodeBuffer) Append(mnemonic Mnemonic, immediate *big.Int) Handle {
	id := b.offset
	b.offset += b.table.InstructionWidth(mnemonic)

	e := entry{id: id, mnemonic: mnemonic}
	if mnemonic == PUSH {
		if immediate == nil {
			immediate = new(big.Int)
		}
		e.immediate = hexPad(immediate, b.table.ImmediateHexWidth())
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries) - 1)
}

// AppendPlain is a convenience for mnemonics with no immediate at all.
func (b *OpcodeBuffer) AppendPlain(mnemonic Mnemonic) Handle {
	return b.Append(mnemonic, nil)
}

// Patch overwrites the immediate of an already-appended PUSH entry. Patching
// anything else is a generator bug and panics rather than silently
// corrupting the stream.
func (b *OpcodeBuffer) Patch(h Handle, newImmediate *big.Int) {
	e := &b.entries[h]
	if e.mnemonic != PUSH {
		panic(fmt.Sprintf("fstroke: cannot patch non-PUSH entry %s at id %d", e.mnemonic, e.id))
	}
	e.immediate = hexPad(newImmediate, b.table.ImmediateHexWidth())
}

// PatchAddress is the common case of Patch: resolving a placeholder PUSH to
// the byte offset of a JUMPDEST (or any other entry) identified by its own
// Handle.
func (b *OpcodeBuffer) PatchAddress(h Handle, target Handle) {
	b.Patch(h, new(big.Int).SetInt64(int64(b.entries[target].id)))
}

// IDOf returns the final byte offset of the entry addressed by h.
func (b *OpcodeBuffer) IDOf(h Handle) int {
	return b.entries[h].id
}

// Len returns the number of entries appended so far.
func (b *OpcodeBuffer) Len() int {
	return len(b.entries)
}

// NextOffset returns the byte offset the next Append call would assign.
func (b *OpcodeBuffer) NextOffset() int {
	return b.offset
}

// Serialize concatenates, for each entry, the opcode byte (2 hex chars) and
// the immediate (if any) into a single hex string. It is a pure function of
// the buffer's contents, so calling it twice returns identical strings.
func (b *OpcodeBuffer) Serialize() (string, error) {
	var sb strings.Builder
	for _, e := range b.entries {
		op, ok := b.table.Opcode(e.mnemonic)
		if !ok {
			return "", fmt.Errorf("fstroke: no opcode encoding for mnemonic %q", e.mnemonic)
		}
		fmt.Fprintf(&sb, "%02X", op)
		if e.mnemonic == PUSH {
			if len(e.immediate) != b.table.ImmediateHexWidth() {
				return "", fmt.Errorf("fstroke: PUSH immediate %q at offset %d has wrong width", e.immediate, e.id)
			}
			sb.WriteString(e.immediate)
		}
	}
	return sb.String(), nil
}

// Entries exposes a read-only view of the buffer's contents for the
// disassembler, which needs (offset, mnemonic, immediate) triples without
// depending on the generator's patching API.
type Entry struct {
	Offset    int
	Mnemonic  Mnemonic
	Immediate string
	HasImm    bool
}

func (b *OpcodeBuffer) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	for i, e := range b.entries {
		out[i] = Entry{Offset: e.id, Mnemonic: e.mnemonic, Immediate: e.immediate, HasImm: e.mnemonic == PUSH}
	}
	return out
}
