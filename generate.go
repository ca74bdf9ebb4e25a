package fstroke

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"fstroke/ast"
)

// Generator is the top-level compilation driver: it owns the instruction
// table, the opcode buffer, the declared-function registry, and the
// bookkeeping for the currently-enclosing while loop (for break). One
// Generator compiles exactly one program; create a fresh one per run.
type Generator struct {
	table InstructionTable
	buf   *OpcodeBuffer
	stack *virtualStack

	registry *functionRegistry

	nextWhileID    int64
	currentWhileID int64
	breakSites     map[int64][]Handle

	log *logrus.Logger
}

// Option configures a Generator at construction time.
type Option func(*Generator)

// WithLogger overrides the default logger. Useful for callers (the CLI, or
// tests) that want compilation messages folded into their own logrus
// pipeline instead of the package default.
func WithLogger(l *logrus.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// NewGenerator validates width and returns a Generator ready to compile one
// program. width is the PUSH address width A in bytes (1..32).
func NewGenerator(width int, opts ...Option) (*Generator, error) {
	table, err := NewInstructionTable(width)
	if err != nil {
		return nil, err
	}
	buf := NewOpcodeBuffer(table)
	g := &Generator{
		table:          table,
		buf:            buf,
		stack:          newVirtualStack(buf),
		registry:       newFunctionRegistry(),
		currentWhileID: -1,
		breakSites:     make(map[int64][]Handle),
		log:            logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate compiles a parsed program and returns the hex-encoded bytecode
// string. tree must be an *ast.Node of Kind Program, as returned by
// ast.Parse.
//
// The module prologue (§4.6) is: initialize the zero frame, then an
// unconditional jump to the program body's entry, which is always emitted
// last so every func declaration's entry offset is known to the registry
// before the program body that calls them is lowered.
func (g *Generator) Generate(tree *ast.Node) (string, error) {
	if tree.Kind != ast.Program {
		return "", newError(ErrKindMalformedTree, "Generate expects a Program node")
	}

	forms, err := g.classifyTopLevel(tree)
	if err != nil {
		return "", err
	}

	g.stack.initStack()
	toProgram := g.buf.Append(PUSH, nil)
	g.buf.AppendPlain(JUMP)

	for _, f := range forms {
		if f.isFunc {
			if err := g.lowerFunc(f.node); err != nil {
				return "", err
			}
		}
	}

	programDest := g.buf.AppendPlain(JUMPDEST)
	g.buf.PatchAddress(toProgram, programDest)
	if err := g.lowerProgram(forms); err != nil {
		return "", err
	}

	out, err := g.buf.Serialize()
	if err != nil {
		return "", err
	}
	g.log.WithFields(logrus.Fields{
		"address_width": g.table.Width(),
		"bytes":         len(out) / 2,
	}).Debug("compiled program")
	return out, nil
}

type topLevelForm struct {
	node   *ast.Node
	isFunc bool
}

// classifyTopLevel validates the func*-then-prog shape: zero or more (func
// ...) forms followed by exactly one (prog ...) form, in source order. The
// tree builder doesn't enforce this (§4.8 leaves it to the dispatcher), so a
// missing or duplicate prog, or any other top-level head, is a malformed
// tree here.
func (g *Generator) classifyTopLevel(tree *ast.Node) ([]topLevelForm, error) {
	forms := make([]topLevelForm, 0, len(tree.Children))
	progSeen := false
	for _, child := range tree.Children {
		head, ok := ast.HeadName(child)
		if !ok {
			return nil, newError(ErrKindMalformedTree, "top-level form must be a list headed by an atom")
		}
		switch head {
		case "func":
			if progSeen {
				return nil, newError(ErrKindMalformedTree, "func form after the prog form")
			}
			forms = append(forms, topLevelForm{node: child, isFunc: true})
		case "prog":
			if progSeen {
				return nil, newError(ErrKindMalformedTree, "more than one top-level prog form")
			}
			progSeen = true
			forms = append(forms, topLevelForm{node: child, isFunc: false})
		default:
			return nil, newError(ErrKindMalformedTree, "unexpected top-level form %q, want func or prog", head)
		}
	}
	if !progSeen {
		return nil, newError(ErrKindMalformedTree, "program has no prog form")
	}
	return forms, nil
}

// lowerFunc lowers one (func name (arg...) body) declaration: the entry
// JUMPDEST is registered before the body is lowered, so direct recursion and
// calls to functions declared earlier resolve, matching the
// single-pass registry semantics described in §7 (a call to a
// not-yet-declared function is ErrUnresolvableName, not a bug to fix).
func (g *Generator) lowerFunc(n *ast.Node) error {
	if len(n.Children) != 4 {
		return newError(ErrKindMalformedTree, "func expects a name, an argument list, and a body")
	}
	nameNode, argsNode, body := n.Children[1], n.Children[2], n.Children[3]
	if nameNode.Kind != ast.Atom {
		return newError(ErrKindMalformedTree, "func's name must be an atom")
	}
	if argsNode.Kind != ast.List {
		return newError(ErrKindMalformedTree, "func's argument list must be a list")
	}
	for _, a := range argsNode.Children {
		if a.Kind != ast.Atom {
			return newError(ErrKindMalformedTree, "func argument names must be atoms")
		}
	}

	entry := g.buf.AppendPlain(JUMPDEST)
	g.registry.declare(nameNode.Name, g.buf.IDOf(entry))

	ctx := newContext(false)
	g.stack.pushFrame()

	atomCountHandle := g.buf.Append(PUSH, nil)
	g.stack.storeAtomCounter()

	// Arguments arrive on the machine stack as arg1..argN with argN on top
	// (pushFrame leaves them untouched below the consumed return address),
	// so binding them in reverse consumes the top first.
	for i := len(argsNode.Children) - 1; i >= 0; i-- {
		slot, _ := ctx.getSlot(argsNode.Children[i].Name)
		g.stack.storeAtomValue(slot)
	}

	if err := g.lowerNode(body, ctx); err != nil {
		return fmt.Errorf("func %s: %w", nameNode.Name, err)
	}

	g.buf.Patch(atomCountHandle, bigU(ctx.atomCount()))

	g.stack.loadReturnAddress()
	g.stack.popFrame()
	g.buf.AppendPlain(JUMP)
	return nil
}

// lowerProgram lowers the single (prog body) form's body directly inline
// (no JUMPDEST/call machinery of its own — control simply falls into it
// from the prologue's jump target), using the zero frame's atom slots.
func (g *Generator) lowerProgram(forms []topLevelForm) error {
	var progNode *ast.Node
	for _, f := range forms {
		if !f.isFunc {
			progNode = f.node
		}
	}
	if len(progNode.Children) != 2 {
		return newError(ErrKindMalformedTree, "prog expects exactly one body expression")
	}

	ctx := newContext(true)
	atomCountHandle := g.buf.Append(PUSH, nil)
	g.stack.storeAtomCounter()

	if err := g.lowerNode(progNode.Children[1], ctx); err != nil {
		return fmt.Errorf("prog: %w", err)
	}

	g.buf.Patch(atomCountHandle, bigU(ctx.atomCount()))

	// A body that falls off the end without an explicit return still halts
	// cleanly rather than running into whatever bytes follow.
	g.buf.AppendPlain(STOP)
	return nil
}
