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
	"testing"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
)

func scoredToken(state linguist.SearchState, score float64) *Token {
	return NewToken(nil, state, score, 0, 0, 0)
}

func TestBestTokenMap_SingleBest(t *testing.T) {
	s1 := &fakeState{name: "s1", class: classEmit, emitting: true}
	s2 := &fakeState{name: "s2", class: classEmit, emitting: true}
	m := NewBestTokenMap(4, 0)

	if m.Get(s1) != nil {
		t.Error("fresh map should miss")
	}

	a := scoredToken(s1, -2)
	m.Put(s1, a)
	if m.Get(s1) != a {
		t.Error("missing recorded token")
	}
	if m.Get(s2) != nil {
		t.Error("wrong-state hit")
	}

	// Put overwrites unconditionally; the admission policy lives in
	// the caller.
	b := scoredToken(s1, -5)
	m.Put(s1, b)
	if m.Get(s1) != b {
		t.Error("put did not overwrite")
	}
	if m.Size() != 1 {
		t.Errorf("size = %d, want 1", m.Size())
	}
}

// hmmState gives two distinct states the same (lex, history) identity.
type hmmState struct {
	fakeState
	lex     any
	history any
}

func (s *hmmState) LexState() any    { return s.lex }
func (s *hmmState) WordHistory() any { return s.history }

func TestBestTokenMap_HeapMode(t *testing.T) {
	mkState := func(name string) *fakeState {
		return &fakeState{name: name, class: classEmit, emitting: true}
	}

	t.Run("distinct keys do not collide", func(t *testing.T) {
		m := NewBestTokenMap(4, 2)
		s := mkState("s")
		m.Put(s, scoredToken(s, -1))
		if m.Get(mkState("other")) != nil {
			t.Error("states without an HMM key must keep separate heaps")
		}
	})

	t.Run("room available returns nil", func(t *testing.T) {
		m := NewBestTokenMap(4, 2)
		ha := &hmmState{fakeState: *mkState("a"), lex: "L", history: "H"}
		hb := &hmmState{fakeState: *mkState("b"), lex: "L", history: "H"}
		m.Put(ha, scoredToken(ha2state(ha), -1))
		// Same heap, different state, heap not yet full.
		if m.Get(hb) != nil {
			t.Error("non-full heap must signal room with nil")
		}
	})

	t.Run("exact state wins over weakest", func(t *testing.T) {
		m := NewBestTokenMap(4, 2)
		// Same heap requires shared (lex, history).
		ha := &hmmState{fakeState: *mkState("a"), lex: "L", history: "H"}
		hb := &hmmState{fakeState: *mkState("b"), lex: "L", history: "H"}

		ta := scoredToken(ha2state(ha), -1)
		tb := scoredToken(ha2state(hb), -2)
		m.Put(ha, ta)
		m.Put(hb, tb)

		if got := m.Get(ha); got != ta {
			t.Errorf("exact-state get = %v, want %v", got, ta)
		}
		if got := m.Get(hb); got != tb {
			t.Errorf("exact-state get = %v, want %v", got, tb)
		}
	})

	t.Run("full heap returns weakest incumbent", func(t *testing.T) {
		m := NewBestTokenMap(4, 2)
		ha := &hmmState{fakeState: *mkState("a"), lex: "L", history: "H"}
		hb := &hmmState{fakeState: *mkState("b"), lex: "L", history: "H"}
		hc := &hmmState{fakeState: *mkState("c"), lex: "L", history: "H"}

		ta := scoredToken(ha2state(ha), -1)
		tb := scoredToken(ha2state(hb), -3)
		m.Put(ha, ta)
		m.Put(hb, tb)

		// Heap is full and c is absent: Get returns the weakest, so a
		// candidate only has to beat -3 to get in. This deliberately
		// admits more than strict k-best.
		if got := m.Get(hc); got != tb {
			t.Errorf("full-heap get = %v, want weakest %v", got, tb)
		}
	})

	t.Run("weakest displaced on overflow", func(t *testing.T) {
		m := NewBestTokenMap(4, 2)
		ha := &hmmState{fakeState: *mkState("a"), lex: "L", history: "H"}
		hb := &hmmState{fakeState: *mkState("b"), lex: "L", history: "H"}
		hc := &hmmState{fakeState: *mkState("c"), lex: "L", history: "H"}

		m.Put(ha, scoredToken(ha2state(ha), -1))
		m.Put(hb, scoredToken(ha2state(hb), -3))
		tc := scoredToken(ha2state(hc), -2)
		m.Put(hc, tc)

		if got := m.Get(hc); got != tc {
			t.Error("new token should displace the weaker occupant")
		}
		if got := m.Get(hb); got == nil || got.SearchState().String() == "b" {
			t.Error("displaced state should no longer have an exact entry")
		}
	})

	t.Run("same state replaced in heap", func(t *testing.T) {
		m := NewBestTokenMap(4, 2)
		ha := &hmmState{fakeState: *mkState("a"), lex: "L", history: "H"}
		first := scoredToken(ha2state(ha), -4)
		better := scoredToken(ha2state(ha), -1)
		m.Put(ha, first)
		m.Put(ha, better)
		if got := m.Get(ha); got != better {
			t.Error("same-state put should replace, not grow the heap")
		}
	})
}

// ha2state returns the hmmState as the linguist.SearchState to store on
// tokens, so heap entries see the HMM key through the token's state.
func ha2state(h *hmmState) linguist.SearchState { return h }
