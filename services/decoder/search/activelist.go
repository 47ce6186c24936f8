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

import (
	"math"
	"sort"
)

// ActiveList is a set of tokens pending expansion at one state-class
// stratum. Membership, not order, is the contract: the search manager
// never assumes anything about iteration order.
type ActiveList interface {
	// Add inserts a token.
	Add(t *Token)

	// Replace removes old and inserts replacement in its place. If old
	// is not present, replacement is simply added.
	Replace(old, replacement *Token)

	// Size returns the number of tokens in the list.
	Size() int

	// Tokens returns the current members. The returned slice is owned
	// by the list and must not be retained across mutations.
	Tokens() []*Token

	// BestToken returns the highest-scoring token seen, or nil.
	BestToken() *Token

	// SetBestToken records the best token, as reported by the scorer.
	SetBestToken(t *Token)

	// BestScore returns the best token's score, or -Inf when the list
	// has no best token.
	BestScore() float64

	// BeamThreshold returns BestScore plus the relative beam width
	// (log domain, <= 0). Tokens scoring below it are gated out of
	// growth.
	BeamThreshold() float64

	// Purge applies the absolute beam, returning the (possibly same)
	// list containing the surviving tokens.
	Purge() ActiveList

	// NewList returns a fresh empty list with the same configuration.
	NewList() ActiveList
}

// ActiveListFactory produces empty active lists for the manager's strata.
type ActiveListFactory func() ActiveList

// SimpleActiveList is an unsorted bag of tokens with best-score
// bookkeeping. Purge sorts by score and keeps the top absoluteBeamWidth
// tokens when an absolute beam is configured.
type SimpleActiveList struct {
	tokens            []*Token
	bestToken         *Token
	absoluteBeamWidth int
	relativeBeamWidth float64
}

// NewSimpleActiveList creates a SimpleActiveList.
//
// absoluteBeamWidth <= 0 disables absolute pruning. relativeBeamWidth is
// log domain and must be <= 0; -Inf disables relative gating, while zero
// admits only tokens tying the best score.
func NewSimpleActiveList(absoluteBeamWidth int, relativeBeamWidth float64) *SimpleActiveList {
	return &SimpleActiveList{
		absoluteBeamWidth: absoluteBeamWidth,
		relativeBeamWidth: relativeBeamWidth,
	}
}

// Add implements ActiveList.
func (l *SimpleActiveList) Add(t *Token) {
	l.tokens = append(l.tokens, t)
	if l.bestToken == nil || t.Score() > l.bestToken.Score() {
		l.bestToken = t
	}
}

// Replace implements ActiveList.
func (l *SimpleActiveList) Replace(old, replacement *Token) {
	replaced := false
	for i, t := range l.tokens {
		if t == old {
			l.tokens[i] = replacement
			replaced = true
			break
		}
	}
	if !replaced {
		l.tokens = append(l.tokens, replacement)
	}
	if l.bestToken == nil || replacement.Score() > l.bestToken.Score() {
		l.bestToken = replacement
	} else if l.bestToken == old {
		l.bestToken = replacement
	}
}

// Size implements ActiveList.
func (l *SimpleActiveList) Size() int { return len(l.tokens) }

// Tokens implements ActiveList.
func (l *SimpleActiveList) Tokens() []*Token { return l.tokens }

// BestToken implements ActiveList.
func (l *SimpleActiveList) BestToken() *Token { return l.bestToken }

// SetBestToken implements ActiveList.
func (l *SimpleActiveList) SetBestToken(t *Token) { l.bestToken = t }

// BestScore implements ActiveList.
func (l *SimpleActiveList) BestScore() float64 {
	if l.bestToken == nil {
		return math.Inf(-1)
	}
	return l.bestToken.Score()
}

// BeamThreshold implements ActiveList.
func (l *SimpleActiveList) BeamThreshold() float64 {
	return l.BestScore() + l.relativeBeamWidth
}

// Purge implements ActiveList. When the absolute beam is set and the
// list exceeds it, tokens are sorted by descending score and the excess
// tail is dropped.
func (l *SimpleActiveList) Purge() ActiveList {
	if l.absoluteBeamWidth > 0 && len(l.tokens) > l.absoluteBeamWidth {
		sort.Slice(l.tokens, func(i, j int) bool {
			return l.tokens[i].Score() > l.tokens[j].Score()
		})
		l.tokens = l.tokens[:l.absoluteBeamWidth]
	}
	return l
}

// NewList implements ActiveList.
func (l *SimpleActiveList) NewList() ActiveList {
	return NewSimpleActiveList(l.absoluteBeamWidth, l.relativeBeamWidth)
}
