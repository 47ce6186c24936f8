// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/search"
)

// wordState is a minimal word search state for lattice tests.
type wordState struct {
	name  string
	final bool
}

func (s *wordState) IsEmitting() bool           { return false }
func (s *wordState) IsWord() bool               { return !s.final }
func (s *wordState) IsFinal() bool              { return s.final }
func (s *wordState) Class() linguist.StateClass { return 0 }
func (s *wordState) Successors() []linguist.Arc { return nil }
func (s *wordState) Key() any                   { return s }
func (s *wordState) String() string             { return s.name }
func (s *wordState) Word() string               { return s.name }

func wordTok(pred *search.Token, name string, score float64, frame int) *search.Token {
	return search.NewToken(pred, &wordState{name: name}, score, 0, 0, frame)
}

func TestBuildRejectsNonFinal(t *testing.T) {
	result := search.NewResult(nil, nil, nil, 3, false)
	_, err := Build(result)
	assert.ErrorIs(t, err, ErrNotFinal)

	_, err = Build(nil)
	assert.ErrorIs(t, err, ErrNotFinal)
}

func TestBuildLinearPath(t *testing.T) {
	a := wordTok(nil, "a", -1, 1)
	b := wordTok(a, "b", -2, 2)
	result := search.NewResult(search.NewAlternateHypothesisManager(),
		nil, []*search.Token{b}, 2, true)

	lat, err := Build(result)
	require.NoError(t, err)

	// <s>, </s>, a, b.
	assert.Len(t, lat.Nodes, 4)
	assert.Equal(t, []string{"a", "b"}, lat.BestPath())
	assert.NotNil(t, lat.Start)
	assert.NotNil(t, lat.End)
}

func TestBuildAlternateEdges(t *testing.T) {
	alts := search.NewAlternateHypothesisManager()

	a := wordTok(nil, "a", -1, 1)
	c := wordTok(nil, "c", -3, 1)
	b := wordTok(a, "b", -2, 2)
	alts.AddAlternatePredecessor(b, c)

	result := search.NewResult(alts, nil, []*search.Token{b}, 2, true)
	lat, err := Build(result)
	require.NoError(t, err)

	// <s>, </s>, a, b, c.
	assert.Len(t, lat.Nodes, 5)

	// b has two incoming word edges: from a (Viterbi) and from c
	// (alternate), so the loser path is recoverable.
	incoming := 0
	for _, e := range lat.Edges {
		if e.To != nil && e.To.Word == "b" {
			incoming++
		}
	}
	assert.Equal(t, 2, incoming)

	// The Viterbi edge wins best-path on a tie.
	assert.Equal(t, []string{"a", "b"}, lat.BestPath())
	assert.Greater(t, lat.Density(), 1.0)
}

func TestBuildDeduplicatesSharedAncestry(t *testing.T) {
	a := wordTok(nil, "a", -1, 1)
	b1 := wordTok(a, "b1", -2, 2)
	b2 := wordTok(a, "b2", -2.5, 2)

	result := search.NewResult(search.NewAlternateHypothesisManager(),
		nil, []*search.Token{b1, b2}, 2, true)
	lat, err := Build(result)
	require.NoError(t, err)

	// Shared ancestor a appears once: <s>, </s>, a, b1, b2.
	assert.Len(t, lat.Nodes, 5)

	fromA := 0
	for _, e := range lat.Edges {
		if e.From != nil && e.From.Word == "a" {
			fromA++
		}
	}
	assert.Equal(t, 2, fromA)
}

func TestBuildSkipsDuplicateEdges(t *testing.T) {
	alts := search.NewAlternateHypothesisManager()
	a := wordTok(nil, "a", -1, 1)
	b := wordTok(a, "b", -2, 2)
	// The primary predecessor also recorded as an alternate must not
	// produce a parallel edge.
	alts.AddAlternatePredecessor(b, a)

	result := search.NewResult(alts, nil, []*search.Token{b}, 2, true)
	lat, err := Build(result)
	require.NoError(t, err)

	seen := make(map[[2]*Node]int)
	for _, e := range lat.Edges {
		seen[[2]*Node{e.From, e.To}]++
	}
	for pair, n := range seen {
		assert.Equal(t, 1, n, "duplicate edge %v -> %v", pair[0].Word, pair[1].Word)
	}
}

func TestLatticeString(t *testing.T) {
	a := wordTok(nil, "a", -1, 1)
	result := search.NewResult(search.NewAlternateHypothesisManager(),
		nil, []*search.Token{a}, 1, true)
	lat, err := Build(result)
	require.NoError(t, err)
	assert.Contains(t, lat.String(), "nodes=3")
	assert.Contains(t, lat.String(), `best="a"`)
}

func TestEmptyResultLattice(t *testing.T) {
	result := search.NewResult(search.NewAlternateHypothesisManager(),
		nil, nil, 0, true)
	lat, err := Build(result)
	require.NoError(t, err)
	assert.Len(t, lat.Nodes, 2)
	assert.Empty(t, lat.BestPath())
	assert.Zero(t, lat.Density())
}
