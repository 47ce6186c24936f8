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
	"fmt"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
)

// Token is one partial hypothesis: a search state reached at a frame
// with an accumulated log-domain path score and a link to the hypothesis
// it was grown from.
//
// A token is immutable after creation with two exceptions: the scorer
// finalizes the acoustic score of an emitting token within the frame it
// was created, and the working score is scratch state overwritten during
// lookahead-gated growth. With keep-all-tokens the predecessor chain of
// any token reaches the utterance's initial token; with word compression
// the recorded predecessors are word tokens only and the chain ends at
// the first word token. Frame numbers never decrease along the chain.
type Token struct {
	state       linguist.SearchState
	predecessor *Token

	frame int

	score          float64
	acousticScore  float64
	languageScore  float64
	insertionScore float64

	// workingScore is scratch used by acoustic lookahead. It never
	// contributes to score.
	workingScore float64
}

// NewToken creates a token grown from predecessor into state with the
// given entry score and arc components, at the given frame.
func NewToken(predecessor *Token, state linguist.SearchState,
	score, languageScore, insertionScore float64, frame int) *Token {
	return &Token{
		state:          state,
		predecessor:    predecessor,
		frame:          frame,
		score:          score,
		languageScore:  languageScore,
		insertionScore: insertionScore,
	}
}

// NewInitialToken creates the utterance's root token at the given state.
func NewInitialToken(state linguist.SearchState, frame int) *Token {
	return &Token{state: state, frame: frame}
}

// SearchState returns the state this token occupies.
func (t *Token) SearchState() linguist.SearchState { return t.state }

// Predecessor returns the predecessor recorded at creation: the token
// this one was grown from, or that token's most recent word token under
// word compression. Nil for the initial token and when no word token
// precedes it.
func (t *Token) Predecessor() *Token { return t.predecessor }

// FrameNumber returns the frame at which this token was created.
func (t *Token) FrameNumber() int { return t.frame }

// Score returns the total log-domain path score.
func (t *Token) Score() float64 { return t.score }

// AcousticScore returns the acoustic contribution accumulated at this
// token's frame. Zero for non-emitting tokens.
func (t *Token) AcousticScore() float64 { return t.acousticScore }

// LanguageScore returns the language component of the arc that created
// this token.
func (t *Token) LanguageScore() float64 { return t.languageScore }

// InsertionScore returns the insertion component of the arc that created
// this token.
func (t *Token) InsertionScore() float64 { return t.insertionScore }

// ApplyAcousticScore finalizes the acoustic score for this frame,
// folding it into the path score. Called by the scorer for emitting
// tokens only. A stratum carried over a grow-skipped frame is scored
// again: each call adds to the path score and AcousticScore keeps the
// latest value.
func (t *Token) ApplyAcousticScore(logScore float64) {
	t.acousticScore = logScore
	t.score += logScore
}

// WorkingScore returns the lookahead scratch score.
func (t *Token) WorkingScore() float64 { return t.workingScore }

// SetWorkingScore overwrites the lookahead scratch score.
func (t *Token) SetWorkingScore(s float64) { t.workingScore = s }

// IsEmitting reports whether this token's state consumes a frame.
func (t *Token) IsEmitting() bool { return t.state.IsEmitting() }

// IsWord reports whether this token's state marks a word boundary.
func (t *Token) IsWord() bool { return t.state.IsWord() }

// IsFinal reports whether this token's state terminates the search space.
func (t *Token) IsFinal() bool { return t.state.IsFinal() }

// LastEmittingAncestor walks the predecessor chain and returns the most
// recent emitting token strictly before this one, or nil if none exists.
func (t *Token) LastEmittingAncestor() *Token {
	for p := t.predecessor; p != nil; p = p.predecessor {
		if p.IsEmitting() {
			return p
		}
	}
	return nil
}

// WordToken returns this token if it is a word token, otherwise the most
// recent word token on the predecessor chain, or nil if there is none.
func (t *Token) WordToken() *Token {
	for tok := t; tok != nil; tok = tok.predecessor {
		if tok.IsWord() {
			return tok
		}
	}
	return nil
}

// String renders the token for logs and error messages.
func (t *Token) String() string {
	return fmt.Sprintf("%s@%d score=%.4f", t.state, t.frame, t.score)
}
