// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

// AlternateHypothesisManager records, for each surviving word token, the
// predecessors of losing tokens that collided with it at the same state.
// Those alternate predecessors become the extra edges of the word
// lattice; without them a pruned-out hypothesis would be unrecoverable.
//
// The manager holds references only. It never owns tokens, but its
// references keep loser-side ancestry reachable until the lattice has
// been built.
type AlternateHypothesisManager struct {
	viterbiLoserMap map[*Token][]*Token
}

// NewAlternateHypothesisManager creates an empty manager.
func NewAlternateHypothesisManager() *AlternateHypothesisManager {
	return &AlternateHypothesisManager{
		viterbiLoserMap: make(map[*Token][]*Token),
	}
}

// AddAlternatePredecessor records predecessor as an additional
// predecessor of token. Self references are ignored.
func (m *AlternateHypothesisManager) AddAlternatePredecessor(token, predecessor *Token) {
	if token == nil || predecessor == nil || token == predecessor {
		return
	}
	m.viterbiLoserMap[token] = append(m.viterbiLoserMap[token], predecessor)
}

// AlternatePredecessors returns the alternate predecessors recorded for
// token, or nil. The returned slice is owned by the manager.
func (m *AlternateHypothesisManager) AlternatePredecessors(token *Token) []*Token {
	return m.viterbiLoserMap[token]
}

// ChangeSuccessor re-targets the alternates recorded against loser so
// they now belong to winner. Used when a token that had already
// accumulated alternates is superseded by a better one at the same
// state.
func (m *AlternateHypothesisManager) ChangeSuccessor(winner, loser *Token) {
	if winner == nil || loser == nil || winner == loser {
		return
	}
	list, ok := m.viterbiLoserMap[loser]
	if !ok {
		return
	}
	m.viterbiLoserMap[winner] = append(m.viterbiLoserMap[winner], list...)
	delete(m.viterbiLoserMap, loser)
}

// Size returns the number of tokens with recorded alternates.
func (m *AlternateHypothesisManager) Size() int { return len(m.viterbiLoserMap) }
