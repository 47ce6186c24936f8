// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/search"
)

// emittingTokens builds n emitting tokens over distinct states.
func emittingTokens(n int) []*search.Token {
	fl, err := linguist.NewFlatLinguist([]string{"w"}, linguist.FlatConfig{StatesPerWord: n})
	if err != nil {
		panic(err)
	}
	initial, _ := fl.InitialSearchState()

	var tokens []*search.Token
	var visit func(s linguist.SearchState)
	seen := make(map[linguist.SearchState]bool)
	visit = func(s linguist.SearchState) {
		if seen[s] {
			return
		}
		seen[s] = true
		if s.IsEmitting() {
			tokens = append(tokens, search.NewInitialToken(s, 0))
		}
		for _, a := range s.Successors() {
			visit(a.State)
		}
	}
	visit(initial)
	return tokens
}

func TestSyntheticSource(t *testing.T) {
	src := NewSyntheticSource(3, 4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		frame, err := src.NextFrame(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if len(frame) != 4 {
			t.Fatalf("dimension = %d, want 4", len(frame))
		}
	}
	if _, err := src.NextFrame(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("err = %v, want ErrEndOfStream", err)
	}
}

func TestSyntheticSourceDeterministic(t *testing.T) {
	ctx := context.Background()
	a, _ := NewSyntheticSource(2, 8).NextFrame(ctx)
	b, _ := NewSyntheticSource(2, 8).NextFrame(ctx)
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("synthetic frames must be deterministic")
		}
	}
}

func TestFrameScorerScoresAllTokens(t *testing.T) {
	tokens := emittingTokens(4)
	model := AcousticModelFunc(func(state linguist.SearchState, _ []float32) float64 {
		return -1.0
	})
	s, err := NewFrameScorer(NewSyntheticSource(2, 4), model, WithWorkers(2))
	if err != nil {
		t.Fatal(err)
	}

	best, err := s.CalculateScores(context.Background(), tokens)
	if err != nil {
		t.Fatal(err)
	}
	if best == nil {
		t.Fatal("best = nil before end of stream")
	}
	for _, tok := range tokens {
		if tok.AcousticScore() != -1.0 {
			t.Errorf("token %v not scored", tok)
		}
		if tok.Score() != -1.0 {
			t.Errorf("acoustic score not folded into %v", tok)
		}
	}
}

func TestFrameScorerReturnsBest(t *testing.T) {
	tokens := emittingTokens(3)
	// Score by chain position: later states better.
	model := AcousticModelFunc(func(state linguist.SearchState, _ []float32) float64 {
		name := state.String()
		return float64(name[len(name)-1]-'0') - 3
	})
	s, err := NewFrameScorer(NewSyntheticSource(1, 4), model)
	if err != nil {
		t.Fatal(err)
	}

	best, err := s.CalculateScores(context.Background(), tokens)
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range tokens {
		if tok.Score() > best.Score() {
			t.Errorf("token %v beats reported best %v", tok, best)
		}
	}
}

func TestFrameScorerEndOfStream(t *testing.T) {
	tokens := emittingTokens(1)
	model := AcousticModelFunc(func(linguist.SearchState, []float32) float64 { return 0 })
	s, err := NewFrameScorer(NewSyntheticSource(0, 4), model)
	if err != nil {
		t.Fatal(err)
	}

	best, err := s.CalculateScores(context.Background(), tokens)
	if err != nil {
		t.Fatal(err)
	}
	if best != nil {
		t.Error("exhausted source must yield a nil best token")
	}
}

func TestFrameScorerEmptyStratum(t *testing.T) {
	model := AcousticModelFunc(func(linguist.SearchState, []float32) float64 { return 0 })
	s, err := NewFrameScorer(NewSyntheticSource(5, 4), model)
	if err != nil {
		t.Fatal(err)
	}
	best, err := s.CalculateScores(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if best != nil {
		t.Error("empty stratum must end the utterance")
	}
}

func TestFrameScorerCancelled(t *testing.T) {
	tokens := emittingTokens(2)
	model := AcousticModelFunc(func(linguist.SearchState, []float32) float64 { return 0 })
	s, err := NewFrameScorer(NewSyntheticSource(5, 4), model)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.CalculateScores(ctx, tokens); err == nil {
		t.Error("cancelled context must surface an error")
	}
}

func TestNewFrameScorerValidation(t *testing.T) {
	model := AcousticModelFunc(func(linguist.SearchState, []float32) float64 { return 0 })
	if _, err := NewFrameScorer(nil, model); err == nil {
		t.Error("nil source accepted")
	}
	if _, err := NewFrameScorer(NewSyntheticSource(1, 1), nil); err == nil {
		t.Error("nil model accepted")
	}
}
