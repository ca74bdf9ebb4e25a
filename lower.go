package fstroke

import (
	"math/big"

	"fstroke/ast"
)

// builtinBinary is a built-in whose lowering is "evaluate both args left to
// right, then emit one fixed opcode (or short fixed sequence)". It covers
// plus/times/equal/or/and/minus/divide and less/greater/lesseq/greatereq —
// the operators in §4.5 whose whole contract is captured by an argument
// order plus a tail sequence.
type builtinBinary struct {
	tail []Mnemonic
	swap bool // emit SWAP1 before tail (minus, divide: two's-complement order)
}

var binaryBuiltins = map[string]builtinBinary{
	"plus":   {tail: []Mnemonic{ADD}},
	"times":  {tail: []Mnemonic{MUL}},
	"equal":  {tail: []Mnemonic{EQ}},
	"or":     {tail: []Mnemonic{OR}},
	"and":    {tail: []Mnemonic{AND}},
	"minus":  {tail: []Mnemonic{SUB}, swap: true},
	"divide": {tail: []Mnemonic{DIV}, swap: true},
	// less/greater/lesseq/greatereq normalize to the mathematical meaning of
	// their names (§4.5); the original's GT/LT choice is reused verbatim
	// since it already matches that contract (grounded on
	// code_generator.py's BuiltIns.greater/less).
	"less":       {tail: []Mnemonic{GT}},
	"greater":    {tail: []Mnemonic{LT}},
	"lesseq":     {tail: []Mnemonic{LT, ISZERO}},
	"greatereq":  {tail: []Mnemonic{GT, ISZERO}},
}

// lowerNode lowers one tree node relative to ctx, appending to g.buf.
func (g *Generator) lowerNode(n *ast.Node, ctx *context) error {
	switch n.Kind {
	case ast.Literal:
		return g.lowerLiteral(n)
	case ast.Atom:
		return g.lowerAtom(n, ctx)
	case ast.List:
		return g.lowerList(n, ctx)
	default:
		return newError(ErrKindMalformedTree, "unexpected node kind %s here", n.Kind)
	}
}

func (g *Generator) lowerLiteral(n *ast.Node) error {
	value, ok := new(big.Int).SetString(n.Value, 10)
	if !ok {
		return newError(ErrKindMalformedTree, "invalid integer literal %q", n.Value)
	}
	if max, exact := g.table.MaxLiteral(); exact && value.Cmp(new(big.Int).SetUint64(max)) > 0 {
		return newError(ErrKindUnsupportedLiteral, "literal %s exceeds maximum for address width %d", n.Value, g.table.Width())
	} else if !exact {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(8*g.table.Width()))
		if value.Cmp(limit) >= 0 {
			return newError(ErrKindUnsupportedLiteral, "literal %s exceeds maximum for address width %d", n.Value, g.table.Width())
		}
	}
	g.buf.Append(PUSH, value)
	return nil
}

func (g *Generator) lowerAtom(n *ast.Node, ctx *context) error {
	slot, _ := ctx.getSlot(n.Name)
	g.stack.loadAtomValue(slot)
	return nil
}

func (g *Generator) lowerList(n *ast.Node, ctx *context) error {
	if len(n.Children) == 0 {
		return newError(ErrKindMalformedTree, "empty list")
	}

	// A list whose first child is itself a list is a nested block: lower
	// each child sequentially for side effects.
	if n.Children[0].Kind == ast.List {
		for _, child := range n.Children {
			if err := g.lowerNode(child, ctx); err != nil {
				return err
			}
		}
		return nil
	}

	head, ok := ast.HeadName(n)
	if !ok {
		return newError(ErrKindMalformedTree, "list head must be an atom")
	}

	if b, ok := binaryBuiltins[head]; ok {
		return g.lowerBinaryBuiltin(n, ctx, head, b)
	}

	switch head {
	case "not":
		return g.lowerNot(n, ctx)
	case "nonequal":
		return g.lowerNonequal(n, ctx)
	case "setq":
		return g.lowerSetq(n, ctx)
	case "read":
		return g.lowerRead(n, ctx)
	case "return":
		return g.lowerReturn(n, ctx)
	case "cond":
		return g.lowerCond(n, ctx)
	case "while":
		return g.lowerWhile(n, ctx)
	case "break":
		return g.lowerBreak(n, ctx)
	case "func":
		return newError(ErrKindMalformedTree, "func is only allowed at top level")
	}

	if entryOffset, ok := g.registry.lookup(head); ok {
		return g.lowerCall(n, ctx, entryOffset)
	}

	return newError(ErrKindUnresolvableName, "no builtin or declared function named %q", head)
}

func (g *Generator) requireArity(n *ast.Node, want int, form string) error {
	if len(n.Children) != want {
		return newError(ErrKindMalformedTree, "%s expects %d argument(s), got %d", form, want-1, len(n.Children)-1)
	}
	return nil
}

func (g *Generator) lowerBinaryBuiltin(n *ast.Node, ctx *context, head string, b builtinBinary) error {
	if err := g.requireArity(n, 3, head); err != nil {
		return err
	}
	if err := g.lowerNode(n.Children[1], ctx); err != nil {
		return err
	}
	if err := g.lowerNode(n.Children[2], ctx); err != nil {
		return err
	}
	if b.swap {
		g.buf.AppendPlain(SWAP1)
	}
	for _, m := range b.tail {
		g.buf.AppendPlain(m)
	}
	return nil
}

func (g *Generator) lowerNot(n *ast.Node, ctx *context) error {
	if err := g.requireArity(n, 2, "not"); err != nil {
		return err
	}
	if err := g.lowerNode(n.Children[1], ctx); err != nil {
		return err
	}
	g.buf.Append(PUSH, bigU(0))
	g.buf.AppendPlain(EQ)
	return nil
}

func (g *Generator) lowerNonequal(n *ast.Node, ctx *context) error {
	if err := g.requireArity(n, 3, "nonequal"); err != nil {
		return err
	}
	if err := g.lowerNode(n.Children[1], ctx); err != nil {
		return err
	}
	if err := g.lowerNode(n.Children[2], ctx); err != nil {
		return err
	}
	g.buf.AppendPlain(EQ)
	g.buf.Append(PUSH, bigU(0))
	g.buf.AppendPlain(EQ)
	return nil
}

func (g *Generator) lowerSetq(n *ast.Node, ctx *context) error {
	if err := g.requireArity(n, 3, "setq"); err != nil {
		return err
	}
	if n.Children[1].Kind != ast.Atom {
		return newError(ErrKindMalformedTree, "setq's first argument must be an atom name")
	}
	if err := g.lowerNode(n.Children[2], ctx); err != nil {
		return err
	}
	slot, _ := ctx.getSlot(n.Children[1].Name)
	g.stack.storeAtomValue(slot)
	return nil
}

func (g *Generator) lowerRead(n *ast.Node, ctx *context) error {
	if err := g.requireArity(n, 2, "read"); err != nil {
		return err
	}
	if err := g.lowerNode(n.Children[1], ctx); err != nil {
		return err
	}
	g.buf.Append(PUSH, bigU(0x20))
	g.buf.AppendPlain(MUL)
	g.buf.AppendPlain(CALLDATALOAD)
	return nil
}

func (g *Generator) lowerReturn(n *ast.Node, ctx *context) error {
	if len(n.Children) != 2 {
		return newError(ErrKindMalformedTree, "return requires exactly one expression")
	}
	if err := g.lowerNode(n.Children[1], ctx); err != nil {
		return err
	}

	if ctx.isProgramBody {
		g.buf.Append(PUSH, bigU(0))
		g.buf.AppendPlain(MSTORE)
		g.buf.Append(PUSH, bigU(0x20))
		g.buf.Append(PUSH, bigU(0))
		g.buf.AppendPlain(RETURN)
		return nil
	}

	g.stack.loadReturnAddress()
	g.stack.popFrame()
	g.buf.AppendPlain(JUMP)
	return nil
}

// lowerCond implements the three-landing-pad pattern from §4.5: true block,
// false block (always emitted, even with no else, so the false-to-end jump
// lands somewhere), and end.
func (g *Generator) lowerCond(n *ast.Node, ctx *context) error {
	if len(n.Children) != 3 && len(n.Children) != 4 {
		return newError(ErrKindMalformedTree, "cond expects a test, a then-branch, and an optional else-branch")
	}
	if err := g.lowerNode(n.Children[1], ctx); err != nil {
		return err
	}

	toTrue := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMPI)
	toFalse := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMP)

	trueDest := g.buf.AppendPlain(JUMPDEST)
	g.buf.PatchAddress(toTrue, trueDest)
	if err := g.lowerNode(n.Children[2], ctx); err != nil {
		return err
	}
	trueToEnd := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMP)

	falseDest := g.buf.AppendPlain(JUMPDEST)
	g.buf.PatchAddress(toFalse, falseDest)
	if len(n.Children) == 4 {
		if err := g.lowerNode(n.Children[3], ctx); err != nil {
			return err
		}
	}
	falseToEnd := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMP)

	endDest := g.buf.AppendPlain(JUMPDEST)
	g.buf.PatchAddress(trueToEnd, endDest)
	g.buf.PatchAddress(falseToEnd, endDest)
	return nil
}

// lowerWhile follows the Design Notes' preferred alternative to the
// original's sentinel-tagged-JUMP sweep: break sites are collected directly
// in g.breakSites, keyed by loop id, and patched here once the loop's end
// label is known. See DESIGN.md for why this reading of the spec was
// chosen over the literal JUMP-immediate-as-marker scheme.
func (g *Generator) lowerWhile(n *ast.Node, ctx *context) error {
	if err := g.requireArity(n, 3, "while"); err != nil {
		return err
	}

	prevWhile := g.currentWhileID
	wid := g.nextWhileID
	g.nextWhileID++
	g.currentWhileID = wid
	g.breakSites[wid] = nil

	condDest := g.buf.AppendPlain(JUMPDEST)
	if err := g.lowerNode(n.Children[1], ctx); err != nil {
		return err
	}

	toBody := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMPI)
	toEnd := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMP)

	bodyDest := g.buf.AppendPlain(JUMPDEST)
	g.buf.PatchAddress(toBody, bodyDest)
	if err := g.lowerNode(n.Children[2], ctx); err != nil {
		return err
	}
	// condDest's offset is already known (it precedes the body), so the
	// loop-back jump needs no placeholder.
	g.buf.Append(PUSH, bigU(uint64(g.buf.IDOf(condDest))))
	g.buf.AppendPlain(JUMP)

	endDest := g.buf.AppendPlain(JUMPDEST)
	g.buf.PatchAddress(toEnd, endDest)
	for _, h := range g.breakSites[wid] {
		g.buf.PatchAddress(h, endDest)
	}

	delete(g.breakSites, wid)
	g.currentWhileID = prevWhile
	return nil
}

func (g *Generator) lowerBreak(n *ast.Node, ctx *context) error {
	if len(n.Children) != 1 {
		return newError(ErrKindMalformedTree, "break takes no arguments")
	}
	if g.currentWhileID < 0 {
		return newError(ErrKindMalformedTree, "break outside of a while loop")
	}
	h := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMP)
	g.breakSites[g.currentWhileID] = append(g.breakSites[g.currentWhileID], h)
	return nil
}

// lowerCall implements a user-defined call site: lower each argument in
// order, reserve a resume-address placeholder, jump to the function's
// entry, then land on a JUMPDEST the placeholder resolves to.
func (g *Generator) lowerCall(n *ast.Node, ctx *context, entryOffset int) error {
	for _, arg := range n.Children[1:] {
		if err := g.lowerNode(arg, ctx); err != nil {
			return err
		}
	}

	resume := g.buf.Append(PUSH, nil)
	g.buf.Append(PUSH, bigU(uint64(entryOffset)))
	g.buf.AppendPlain(JUMP)
	landing := g.buf.AppendPlain(JUMPDEST)
	g.buf.PatchAddress(resume, landing)
	return nil
}
