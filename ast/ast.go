// Package ast builds the F-Stroke syntax tree from a token stream: a finite,
// non-cyclic tree of Program/List/Atom/Literal nodes, per the tokenizer ->
// tree-builder split described in the accompanying spec. It is a
// recursive-descent parser with one token of lookahead and no backtracking,
// in the style of AST.py's process_program/process_list/process_atom family.
package ast

import (
	"fmt"
	"strings"

	"fstroke/token"
)

// NodeKind discriminates the four tree-node variants.
type NodeKind int

const (
	Program NodeKind = iota
	List
	Atom
	Literal
)

func (k NodeKind) String() string {
	switch k {
	case Program:
		return "Program"
	case List:
		return "List"
	case Atom:
		return "Atom"
	case Literal:
		return "Literal"
	default:
		return "?"
	}
}

// Node is one node of the tree. Only the fields relevant to its Kind are
// populated: Program and List carry Children, Atom carries Name, Literal
// carries Value.
type Node struct {
	Kind     NodeKind
	Children []*Node
	Name     string // Atom only, lower-cased
	Value    string // Literal only, decimal digits as written
}

// ParseError reports a malformed s-expression: unbalanced parens or an
// unrecognized character. An empty program parses to a Program node with no
// children and is not a parse error. ParseError is distinct from the
// generator's CompileError — parse errors never reach the lowering
// dispatcher.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at byte %d: %s", e.Pos, e.Msg)
}

// Parse tokenizes and parses src into a Program node.
func Parse(src string) (*Node, error) {
	return ParseTokens(token.Tokenize(src))
}

// ParseTokens builds a tree from an already-tokenized stream (exposed so
// callers that tokenize once and parse for diagnostics separately can reuse
// the same token slice).
func ParseTokens(tokens []token.Token) (*Node, error) {
	p := &parser{tokens: tokens}
	return p.parseProgram()
}

type parser struct {
	tokens []token.Token
	pos    int
}

func (p *parser) current() token.Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *parser) skipSpace() {
	for p.current().Kind == token.Space {
		p.advance()
	}
}

func (p *parser) parseProgram() (*Node, error) {
	node := &Node{Kind: Program}
	p.skipSpace()
	for p.current().Kind != token.EOF {
		el, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, el)
		p.skipSpace()
	}
	return node, nil
}

func (p *parser) parseElement() (*Node, error) {
	switch p.current().Kind {
	case token.Letter:
		return p.parseAtom()
	case token.Digit:
		return p.parseLiteral()
	case token.LP:
		return p.parseList()
	case token.RP:
		return nil, &ParseError{Pos: p.current().Pos, Msg: "unmatched ')'"}
	case token.EOF:
		return nil, &ParseError{Pos: p.current().Pos, Msg: "unexpected end of input"}
	default:
		return nil, &ParseError{Pos: p.current().Pos, Msg: fmt.Sprintf("unrecognized character %q", rune(p.current().Value))}
	}
}

func (p *parser) parseList() (*Node, error) {
	node := &Node{Kind: List}
	start := p.current().Pos
	p.advance() // consume '('

	for {
		p.skipSpace()
		switch p.current().Kind {
		case token.RP:
			p.advance()
			return node, nil
		case token.EOF:
			return nil, &ParseError{Pos: start, Msg: "unterminated list"}
		default:
			el, err := p.parseElement()
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, el)
		}
	}
}

func (p *parser) parseAtom() (*Node, error) {
	var sb strings.Builder
	for p.current().Kind == token.Letter || p.current().Kind == token.Digit {
		sb.WriteByte(p.current().Value)
		p.advance()
	}
	return &Node{Kind: Atom, Name: strings.ToLower(sb.String())}, nil
}

func (p *parser) parseLiteral() (*Node, error) {
	var sb strings.Builder
	for p.current().Kind == token.Digit {
		sb.WriteByte(p.current().Value)
		p.advance()
	}
	return &Node{Kind: Literal, Value: sb.String()}, nil
}

// HeadName returns the lower-cased name of a List node's first child if it
// is an Atom, and whether that shape holds. Used throughout the generator
// to dispatch on "(name ...)" forms without repeating the type assertion.
func HeadName(n *Node) (string, bool) {
	if n.Kind != List || len(n.Children) == 0 {
		return "", false
	}
	head := n.Children[0]
	if head.Kind != Atom {
		return "", false
	}
	return head.Name, true
}
