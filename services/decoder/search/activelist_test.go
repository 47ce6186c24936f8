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
	"testing"
)

func emitToken(name string, score float64) *Token {
	tok := NewInitialToken(&fakeState{name: name, class: classEmit, emitting: true}, 0)
	tok.ApplyAcousticScore(score)
	return tok
}

func TestSimpleActiveList_Basic(t *testing.T) {
	t.Run("add tracks best", func(t *testing.T) {
		l := NewSimpleActiveList(0, -5)
		a := emitToken("a", -1)
		b := emitToken("b", -3)

		l.Add(b)
		l.Add(a)

		if l.Size() != 2 {
			t.Errorf("size = %d, want 2", l.Size())
		}
		if l.BestToken() != a {
			t.Error("best token should be the higher scorer")
		}
		if l.BestScore() != -1 {
			t.Errorf("best score = %v, want -1", l.BestScore())
		}
	})

	t.Run("empty list", func(t *testing.T) {
		l := NewSimpleActiveList(0, -5)
		if l.Size() != 0 || l.BestToken() != nil {
			t.Error("fresh list not empty")
		}
		if !math.IsInf(l.BestScore(), -1) {
			t.Errorf("empty best score = %v, want -Inf", l.BestScore())
		}
	})

	t.Run("beam threshold", func(t *testing.T) {
		l := NewSimpleActiveList(0, -5)
		l.Add(emitToken("a", -2))
		if got := l.BeamThreshold(); got != -7 {
			t.Errorf("threshold = %v, want -7", got)
		}
	})
}

func TestSimpleActiveList_Replace(t *testing.T) {
	t.Run("in place", func(t *testing.T) {
		l := NewSimpleActiveList(0, -5)
		old := emitToken("old", -2)
		l.Add(old)

		repl := emitToken("new", -1)
		l.Replace(old, repl)

		if l.Size() != 1 {
			t.Errorf("size = %d, want 1", l.Size())
		}
		if l.Tokens()[0] != repl {
			t.Error("old token still present")
		}
		if l.BestToken() != repl {
			t.Error("best not updated")
		}
	})

	t.Run("missing old token degrades to add", func(t *testing.T) {
		l := NewSimpleActiveList(0, -5)
		l.Add(emitToken("a", -1))
		l.Replace(emitToken("ghost", -9), emitToken("new", -2))
		if l.Size() != 2 {
			t.Errorf("size = %d, want 2", l.Size())
		}
	})

	t.Run("replacing the best with a worse token keeps list consistent", func(t *testing.T) {
		l := NewSimpleActiveList(0, -5)
		best := emitToken("best", -1)
		l.Add(best)
		worse := emitToken("worse", -4)
		l.Replace(best, worse)
		if l.BestToken() != worse {
			t.Error("stale best token retained after its removal")
		}
	})
}

func TestSimpleActiveList_Purge(t *testing.T) {
	l := NewSimpleActiveList(2, -5)
	l.Add(emitToken("a", -3))
	l.Add(emitToken("b", -1))
	l.Add(emitToken("c", -2))

	got := l.Purge()
	if got.Size() != 2 {
		t.Fatalf("size after purge = %d, want 2", got.Size())
	}
	// Survivors are the two best scorers.
	for _, tok := range got.Tokens() {
		if tok.Score() < -2 {
			t.Errorf("token %v should have been purged", tok)
		}
	}

	t.Run("disabled absolute beam keeps everything", func(t *testing.T) {
		l := NewSimpleActiveList(0, -5)
		for i := 0; i < 10; i++ {
			l.Add(emitToken("t", float64(-i)))
		}
		if l.Purge().Size() != 10 {
			t.Error("purge dropped tokens with no absolute beam")
		}
	})
}

func TestSimpleActiveList_NewList(t *testing.T) {
	l := NewSimpleActiveList(3, -5)
	l.Add(emitToken("a", -1))

	fresh := l.NewList()
	if fresh.Size() != 0 {
		t.Error("NewList not empty")
	}
	fresh.Add(emitToken("b", -2))
	if got := fresh.BeamThreshold(); got != -7 {
		t.Errorf("fresh list lost beam config: threshold = %v, want -7", got)
	}
}
