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
	"sort"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
)

// BestTokenMap tracks, per search state, the best token that reached the
// state during the current frame. It is rebuilt every frame.
//
// In the default single-best mode each state key holds exactly one
// token and Put overwrites unconditionally. With maxHeapSize > 0 the map
// instead keeps a bounded heap of tokens per key, and emitting states
// that expose a lexical position and word history are keyed by that pair
// so parallel paths through the same HMM with the same history collapse.
//
// Heap-mode Get contract: the token for the exact state if present,
// otherwise nil while the heap still has room, otherwise the weakest
// occupant. Callers compare candidates against that return value, so
// admission is gated on beating only the weakest incumbent. This admits
// more tokens per state than a strict k-best would; the behavior is
// intentional and must not be tightened.
type BestTokenMap struct {
	tokens      map[any]*Token
	heaps       map[any]*tokenHeap
	maxHeapSize int
}

// NewBestTokenMap creates a map with the given size hint. maxHeapSize of
// zero selects single-best mode.
func NewBestTokenMap(sizeHint, maxHeapSize int) *BestTokenMap {
	if sizeHint < 1 {
		sizeHint = 1
	}
	m := &BestTokenMap{maxHeapSize: maxHeapSize}
	if maxHeapSize > 0 {
		m.heaps = make(map[any]*tokenHeap, sizeHint)
	} else {
		m.tokens = make(map[any]*Token, sizeHint)
	}
	return m
}

// Get returns the best token recorded for state per the mode's contract,
// or nil.
func (m *BestTokenMap) Get(state linguist.SearchState) *Token {
	if m.maxHeapSize == 0 {
		return m.tokens[m.key(state)]
	}
	h := m.heaps[m.key(state)]
	if h == nil {
		return nil
	}
	if t := h.get(state); t != nil {
		return t
	}
	if !h.isFull() {
		return nil
	}
	return h.smallest()
}

// Put records t as a best token for state.
func (m *BestTokenMap) Put(state linguist.SearchState, t *Token) {
	if m.maxHeapSize == 0 {
		m.tokens[m.key(state)] = t
		return
	}
	key := m.key(state)
	h := m.heaps[key]
	if h == nil {
		h = newTokenHeap(m.maxHeapSize)
		m.heaps[key] = h
	}
	h.add(t)
}

// Size returns the number of distinct state keys recorded.
func (m *BestTokenMap) Size() int {
	if m.maxHeapSize == 0 {
		return len(m.tokens)
	}
	return len(m.heaps)
}

// hmmKey collapses emitting states with the same lexical position and
// word history onto one heap.
type hmmKey struct {
	lexState    any
	wordHistory any
}

func (m *BestTokenMap) key(state linguist.SearchState) any {
	if m.maxHeapSize > 0 && state.IsEmitting() {
		if hmm, ok := state.(linguist.HMMState); ok {
			return hmmKey{lexState: hmm.LexState(), wordHistory: hmm.WordHistory()}
		}
	}
	return state.Key()
}

// tokenHeap is a small bounded collection of tokens kept sorted by
// descending score. Linear scans are fine at the sizes used here.
type tokenHeap struct {
	tokens []*Token
	max    int
}

func newTokenHeap(max int) *tokenHeap {
	return &tokenHeap{tokens: make([]*Token, 0, max), max: max}
}

// add inserts t, replacing an entry with the same search state if one
// exists, otherwise growing the heap or displacing the weakest occupant
// when t beats it.
func (h *tokenHeap) add(t *Token) {
	if !h.tryReplace(t) {
		switch {
		case len(h.tokens) < h.max:
			h.tokens = append(h.tokens, t)
		case t.Score() > h.tokens[len(h.tokens)-1].Score():
			h.tokens[len(h.tokens)-1] = t
		default:
			return
		}
	}
	sort.Slice(h.tokens, func(i, j int) bool {
		return h.tokens[i].Score() > h.tokens[j].Score()
	})
}

func (h *tokenHeap) tryReplace(t *Token) bool {
	key := t.SearchState().Key()
	for i, cur := range h.tokens {
		if cur.SearchState().Key() == key {
			h.tokens[i] = t
			return true
		}
	}
	return false
}

func (h *tokenHeap) get(state linguist.SearchState) *Token {
	key := state.Key()
	for _, t := range h.tokens {
		if t.SearchState().Key() == key {
			return t
		}
	}
	return nil
}

func (h *tokenHeap) smallest() *Token {
	if len(h.tokens) == 0 {
		return nil
	}
	return h.tokens[len(h.tokens)-1]
}

func (h *tokenHeap) isFull() bool { return len(h.tokens) == h.max }
