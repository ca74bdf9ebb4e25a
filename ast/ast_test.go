package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleProgram(t *testing.T) {
	tree, err := Parse(`(prog ((return 42)))`)
	require.NoError(t, err)
	require.Equal(t, Program, tree.Kind)
	require.Len(t, tree.Children, 1)

	prog := tree.Children[0]
	require.Equal(t, List, prog.Kind)
	head, ok := HeadName(prog)
	require.True(t, ok)
	require.Equal(t, "prog", head)
}

func TestParseLowercasesAtomNames(t *testing.T) {
	tree, err := Parse(`(prog ((setq X 1)))`)
	require.NoError(t, err)
	setq := tree.Children[0].Children[1].Children[0]
	require.Equal(t, Atom, setq.Children[1].Kind)
	require.Equal(t, "x", setq.Children[1].Name)
}

func TestParseLiteralPreservesDigits(t *testing.T) {
	tree, err := Parse(`(prog ((return 007)))`)
	require.NoError(t, err)
	ret := tree.Children[0].Children[1].Children[0]
	lit := ret.Children[1]
	require.Equal(t, Literal, lit.Kind)
	require.Equal(t, "007", lit.Value)
}

func TestParseRejectsUnmatchedParen(t *testing.T) {
	_, err := Parse(`(prog ((return 1))`)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseRejectsUnrecognizedCharacter(t *testing.T) {
	_, err := Parse(`(prog ((return 1$)))`)
	require.Error(t, err)
}

func TestParseRejectsStrayCloseParen(t *testing.T) {
	_, err := Parse(`(prog ((return 1))))`)
	require.Error(t, err)
}

func TestHeadNameFalseForLiteralsAndAtoms(t *testing.T) {
	_, ok := HeadName(&Node{Kind: Atom, Name: "x"})
	require.False(t, ok)
	_, ok = HeadName(&Node{Kind: Literal, Value: "1"})
	require.False(t, ok)
}

func TestParseEmptyProgramIsValid(t *testing.T) {
	tree, err := Parse("")
	require.NoError(t, err)
	require.Equal(t, Program, tree.Kind)
	require.Empty(t, tree.Children)
}
