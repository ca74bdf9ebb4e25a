package fstroke

import "math/big"

/*
	Global memory layout (grounded on memory_stack.py's VirtualStackHelper):

		0x00          current-frame pointer ("gap")
		0x20          scratch word (unused directly by the helper, reserved)
		0x40..        frame region; the initial program frame starts at 0x40

	Per-frame layout at offset G (R = reservedFrameSlots = 3 service words):

		G + 0x00      previous-frame pointer
		G + 0x20      atom count for this frame
		G + 0x40      return address (byte offset of caller's resume JUMPDEST)
		G + 0x20*k    atom slot k, for k >= R (the first atom, k = R, is at G + 0x60)

	Every helper below is a fixed, side-effect-only sequence of opcode
	emissions expressed as an | EoS | ... | stack-effect contract in its
	doc comment, the same convention builtin.py/memory_stack.py use.
*/

const (
	reservedFrameSlots = 3
	frameServiceBytes  = reservedFrameSlots * 0x20

	gapAddr       = 0x00
	scratchAddr   = 0x20
	zeroFrameBase = 0x40

	prevGapOffset    = 0x00
	atomCountOffset  = 0x20
	returnAddrOffset = 0x40
	atomBaseOffset   = 0x60
)

func bigU(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// virtualStack emits the fixed opcode sequences that implement call-frame
// discipline in the target machine's linear memory.
type virtualStack struct {
	buf *OpcodeBuffer
}

func newVirtualStack(buf *OpcodeBuffer) *virtualStack {
	return &virtualStack{buf: buf}
}

// initStack sets up the zero frame.
//
// INPUT:  | EoS |
// OUTPUT: | EoS |
func (v *virtualStack) initStack() {
	// gap = 0x40
	v.buf.Append(PUSH, bigU(zeroFrameBase))
	v.buf.Append(PUSH, bigU(gapAddr))
	v.buf.AppendPlain(MSTORE)

	// zero frame's prev-ptr and return-address both start at 0
	v.buf.Append(PUSH, bigU(0))
	v.buf.AppendPlain(DUP1)
	v.buf.Append(PUSH, bigU(zeroFrameBase+prevGapOffset))
	v.buf.AppendPlain(MSTORE)
	v.buf.Append(PUSH, bigU(zeroFrameBase+returnAddrOffset))
	v.buf.AppendPlain(MSTORE)

	// zero frame's atom counter starts at 0
	v.buf.Append(PUSH, bigU(0))
	v.buf.Append(PUSH, bigU(zeroFrameBase+atomCountOffset))
	v.buf.AppendPlain(MSTORE)
}

// loadCurrentFramePtr pushes the current frame's gap.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | gap |
func (v *virtualStack) loadCurrentFramePtr() {
	v.buf.Append(PUSH, bigU(gapAddr))
	v.buf.AppendPlain(MLOAD)
}

// storeCurrentFramePtr stores the top of stack as the new gap.
//
// INPUT:  | EoS | new gap |
// OUTPUT: | EoS |
func (v *virtualStack) storeCurrentFramePtr() {
	v.buf.Append(PUSH, bigU(gapAddr))
	v.buf.AppendPlain(MSTORE)
}

// loadPreviousFramePtr pushes the current frame's previous-frame pointer.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | prev gap |
func (v *virtualStack) loadPreviousFramePtr() {
	v.loadCurrentFramePtr()
	v.buf.AppendPlain(MLOAD)
}

// loadAtomAddress pushes the absolute address of atom slot at byte offset
// slotOffset (slot index already scaled by 32) within the current frame.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | address |
func (v *virtualStack) loadAtomAddress(slotOffset uint64) {
	v.loadCurrentFramePtr()
	v.buf.Append(PUSH, bigU(slotOffset))
	v.buf.AppendPlain(ADD)
}

// loadAtomValue pushes the value stored at atom slot slotOffset.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | value |
func (v *virtualStack) loadAtomValue(slotOffset uint64) {
	v.loadAtomAddress(slotOffset)
	v.buf.AppendPlain(MLOAD)
}

// storeAtomValue stores the top-of-stack value into atom slot slotOffset.
//
// INPUT:  | EoS | new value |
// OUTPUT: | EoS |
func (v *virtualStack) storeAtomValue(slotOffset uint64) {
	v.loadAtomAddress(slotOffset)
	v.buf.AppendPlain(MSTORE)
}

// loadReturnAddressAddr pushes the address of the current frame's
// return-address slot.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | address |
func (v *virtualStack) loadReturnAddressAddr() {
	v.loadCurrentFramePtr()
	v.buf.Append(PUSH, bigU(returnAddrOffset))
	v.buf.AppendPlain(ADD)
}

// loadReturnAddress pushes the current frame's return address.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | return address |
func (v *virtualStack) loadReturnAddress() {
	v.loadReturnAddressAddr()
	v.buf.AppendPlain(MLOAD)
}

// storeReturnAddress stores the top-of-stack value as the current frame's
// return address.
//
// INPUT:  | EoS | new return address |
// OUTPUT: | EoS |
func (v *virtualStack) storeReturnAddress() {
	v.loadReturnAddressAddr()
	v.buf.AppendPlain(MSTORE)
}

// loadAtomCounterAddr pushes the address of the current frame's atom-count
// slot.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | address |
func (v *virtualStack) loadAtomCounterAddr() {
	v.loadCurrentFramePtr()
	v.buf.Append(PUSH, bigU(atomCountOffset))
	v.buf.AppendPlain(ADD)
}

// loadAtomCounter pushes the current frame's atom count.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | atom count |
func (v *virtualStack) loadAtomCounter() {
	v.loadAtomCounterAddr()
	v.buf.AppendPlain(MLOAD)
}

// storeAtomCounter stores the top-of-stack value as the current frame's atom
// count.
//
// INPUT:  | EoS | new atom count |
// OUTPUT: | EoS |
func (v *virtualStack) storeAtomCounter() {
	v.loadAtomCounterAddr()
	v.buf.AppendPlain(MSTORE)
}

// frameSize pushes R*0x20 + atomCount*0x20, the total byte size of the
// current frame.
//
// INPUT:  | EoS |
// OUTPUT: | EoS | size |
func (v *virtualStack) frameSize() {
	v.buf.Append(PUSH, bigU(frameServiceBytes))
	v.loadAtomCounter()
	v.buf.Append(PUSH, bigU(0x20))
	v.buf.AppendPlain(MUL)
	v.buf.AppendPlain(ADD)
}

// pushFrame allocates a new frame immediately after the current one and
// makes it current, wiring up its previous-frame pointer and consuming the
// caller-supplied return address into the new frame's return-address slot.
//
// INPUT:  | EoS | arg1 | ... | argN | return address |
// OUTPUT: | EoS | arg1 | ... | argN |
func (v *virtualStack) pushFrame() {
	// new gap = cur gap + cur frame size
	v.loadCurrentFramePtr()
	v.frameSize()
	v.buf.AppendPlain(ADD)
	// stack: | ... | new gap |

	// new_frame[prevGapOffset] = cur gap; new gap computed twice rather than
	// DUP-juggled across the MSTORE, matching the helper's style of always
	// re-deriving an address instead of stashing it on the machine stack.
	v.loadCurrentFramePtr()
	v.buf.AppendPlain(SWAP1)
	// stack: | ... | cur gap | new gap |
	v.buf.AppendPlain(MSTORE)

	v.loadCurrentFramePtr()
	v.frameSize()
	v.buf.AppendPlain(ADD)
	v.storeCurrentFramePtr()

	// return address is on top of the machine stack (above the args);
	// consume it into the new frame's return-address slot.
	v.storeReturnAddress()
}

// popFrame restores the previous frame as current.
//
// INPUT:  | EoS |
// OUTPUT: | EoS |
func (v *virtualStack) popFrame() {
	v.loadPreviousFramePtr()
	v.storeCurrentFramePtr()
}
