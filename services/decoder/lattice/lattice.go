// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lattice builds word lattices from final recognition results.
//
// A lattice node is one word hypothesis (a word token); edges connect a
// word to the word that preceded it on some surviving path. Primary
// predecessor links contribute the Viterbi edges; the alternate
// predecessors recorded by the search's AlternateHypothesisManager
// contribute the edges that pruning would otherwise have erased. The
// result is a compact graph for rescoring and N-best extraction.
package lattice

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/search"
)

// ErrNotFinal is returned when a lattice is requested for an utterance
// still in progress.
var ErrNotFinal = errors.New("lattice: result is not final")

// Node is one word hypothesis in the lattice.
type Node struct {
	// ID is a unique node identifier.
	ID string

	// Word is the word label, or "<s>"/"</s>" for the sentinel
	// start/end nodes.
	Word string

	// EndFrame is the frame at which the word hypothesis ended.
	EndFrame int

	// Score is the path score of the backing token.
	Score float64
}

// Edge connects a predecessor word hypothesis to a successor.
type Edge struct {
	From *Node
	To   *Node

	// AcousticScore and LanguageScore are the successor token's arc
	// components, log domain.
	AcousticScore float64
	LanguageScore float64
}

// Lattice is a word graph over one utterance.
type Lattice struct {
	Start *Node
	End   *Node
	Nodes []*Node
	Edges []*Edge

	incoming map[*Node][]*Edge
}

// Build constructs the lattice for a final result.
func Build(result *search.Result) (*Lattice, error) {
	if result == nil || !result.IsFinal() {
		return nil, ErrNotFinal
	}

	b := &builder{
		lat:        &Lattice{incoming: make(map[*Node][]*Edge)},
		byToken:    make(map[*search.Token]*Node),
		alternates: result.AlternateHypotheses(),
	}
	b.lat.Start = b.sentinel("<s>", 0)
	b.lat.End = b.sentinel("</s>", result.FrameNumber())

	for _, t := range result.Tokens() {
		node := b.node(t)
		if node == nil {
			continue
		}
		b.edge(node, b.lat.End, 0, 0)
	}
	return b.lat, nil
}

type builder struct {
	lat        *Lattice
	byToken    map[*search.Token]*Node
	alternates *search.AlternateHypothesisManager
}

func (b *builder) sentinel(word string, frame int) *Node {
	n := &Node{ID: uuid.NewString(), Word: word, EndFrame: frame}
	b.lat.Nodes = append(b.lat.Nodes, n)
	return n
}

// node materializes the lattice node for a word token, wiring its
// predecessor edges (primary and alternate) recursively. Non-word
// tokens are skipped by walking to their word ancestor.
func (b *builder) node(t *search.Token) *Node {
	t = wordToken(t)
	if t == nil {
		return nil
	}
	if n, ok := b.byToken[t]; ok {
		return n
	}

	n := &Node{
		ID:       uuid.NewString(),
		Word:     wordOf(t),
		EndFrame: t.FrameNumber(),
		Score:    t.Score(),
	}
	b.byToken[t] = n
	b.lat.Nodes = append(b.lat.Nodes, n)

	b.linkPredecessor(n, t, t.Predecessor())
	if b.alternates != nil {
		for _, alt := range b.alternates.AlternatePredecessors(t) {
			b.linkPredecessor(n, t, alt)
		}
	}
	return n
}

func (b *builder) linkPredecessor(n *Node, t, pred *search.Token) {
	var from *Node
	if prev := wordToken(pred); prev != nil {
		from = b.node(prev)
	} else {
		from = b.lat.Start
	}
	b.edge(from, n, t.AcousticScore(), t.LanguageScore())
}

func (b *builder) edge(from, to *Node, acoustic, language float64) {
	for _, e := range b.lat.incoming[to] {
		if e.From == from {
			return
		}
	}
	e := &Edge{From: from, To: to, AcousticScore: acoustic, LanguageScore: language}
	b.lat.Edges = append(b.lat.Edges, e)
	b.lat.incoming[to] = append(b.lat.incoming[to], e)
}

func wordToken(t *search.Token) *search.Token {
	if t == nil {
		return nil
	}
	return t.WordToken()
}

func wordOf(t *search.Token) string {
	if ws, ok := t.SearchState().(linguist.WordState); ok {
		return ws.Word()
	}
	return t.SearchState().String()
}

// BestPath returns the highest-scoring word sequence from Start to End
// by dynamic programming over edge scores, excluding the sentinels.
func (l *Lattice) BestPath() []string {
	type cell struct {
		score float64
		prev  *Node
	}
	table := map[*Node]cell{l.Start: {score: 0}}

	// Edges were appended in dependency order by the builder (every edge
	// into a node is added before any edge out of it), so one pass in
	// insertion order relaxes every edge.
	for _, e := range l.Edges {
		from, ok := table[e.From]
		if !ok {
			continue
		}
		score := from.score + e.AcousticScore + e.LanguageScore
		if cur, ok := table[e.To]; !ok || score > cur.score {
			table[e.To] = cell{score: score, prev: e.From}
		}
	}

	if _, ok := table[l.End]; !ok {
		return nil
	}
	var words []string
	for n := table[l.End].prev; n != nil && n != l.Start; n = table[n].prev {
		words = append(words, n.Word)
	}
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return words
}

// String renders a short summary for logs.
func (l *Lattice) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "lattice{nodes=%d edges=%d", len(l.Nodes), len(l.Edges))
	if best := l.BestPath(); len(best) > 0 {
		fmt.Fprintf(&sb, " best=%q", strings.Join(best, " "))
	}
	sb.WriteByte('}')
	return sb.String()
}

// Density returns edges per non-sentinel node, a rough measure of how
// much alternate structure survived pruning.
func (l *Lattice) Density() float64 {
	n := len(l.Nodes) - 2
	if n <= 0 {
		return 0
	}
	return float64(len(l.Edges)) / math.Max(1, float64(n))
}
