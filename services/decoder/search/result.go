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
	"strings"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
)

// Result is a snapshot of recognition state after a Recognize call.
// A non-final result reflects an utterance still in progress; a final
// result's Tokens are the terminal tokens from which, together with the
// alternate hypotheses, the word lattice is built.
type Result struct {
	alternates *AlternateHypothesisManager
	activeList ActiveList
	tokens     []*Token
	frame      int
	final      bool
}

// NewResult assembles a result snapshot.
func NewResult(alternates *AlternateHypothesisManager, activeList ActiveList,
	tokens []*Token, frame int, final bool) *Result {
	return &Result{
		alternates: alternates,
		activeList: activeList,
		tokens:     tokens,
		frame:      frame,
		final:      final,
	}
}

// Tokens returns the result list: tokens that reached a final state
// (word-compressed unless keep-all-tokens is set).
func (r *Result) Tokens() []*Token { return r.tokens }

// AlternateHypotheses returns the alternate-predecessor record, or nil
// when lattice building is disabled.
func (r *Result) AlternateHypotheses() *AlternateHypothesisManager { return r.alternates }

// ActiveList returns the final active list snapshot.
func (r *Result) ActiveList() ActiveList { return r.activeList }

// FrameNumber returns the frame the recognizer had processed up to.
func (r *Result) FrameNumber() int { return r.frame }

// IsFinal reports whether the utterance has ended.
func (r *Result) IsFinal() bool { return r.final }

// BestFinalToken returns the highest-scoring token in the result list,
// or nil when no hypothesis reached a final state.
func (r *Result) BestFinalToken() *Token {
	var best *Token
	for _, t := range r.tokens {
		if best == nil || t.Score() > best.Score() {
			best = t
		}
	}
	return best
}

// BestToken returns the best final token, falling back to the best
// active token while the utterance is still in progress. Nil when the
// beam is empty.
func (r *Result) BestToken() *Token {
	if best := r.BestFinalToken(); best != nil {
		return best
	}
	if r.activeList != nil {
		return r.activeList.BestToken()
	}
	return nil
}

// BestTranscription returns the words along the best token's
// predecessor chain, oldest first, joined by spaces. Empty when there
// is no best token or its path crosses no word states.
func (r *Result) BestTranscription() string {
	best := r.BestToken()
	if best == nil {
		return ""
	}
	var words []string
	for t := best; t != nil; t = t.Predecessor() {
		if !t.IsWord() {
			continue
		}
		if ws, ok := t.SearchState().(linguist.WordState); ok {
			words = append(words, ws.Word())
		}
	}
	// Chain walk yields newest first.
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, " ")
}
