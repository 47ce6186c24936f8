// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package linguist

import (
	"errors"
	"fmt"
	"math"
)

// State classes used by the flat linguist. Non-emitting classes sort
// before the emitting class, as SearchStateOrder requires.
const (
	// ClassWord tags non-emitting word-boundary states (and the initial
	// and final states).
	ClassWord StateClass = iota

	// ClassUnit tags non-emitting unit-entry states.
	ClassUnit

	// ClassHMM tags emitting HMM states.
	ClassHMM
)

// Default flat-linguist parameters.
const (
	// DefaultStatesPerWord is the HMM chain length per word.
	DefaultStatesPerWord = 3

	// DefaultSelfLoopProbability is the linear self-loop probability of
	// each emitting state.
	DefaultSelfLoopProbability = 0.5
)

// ErrNoWords is returned when a flat linguist is built without words.
var ErrNoWords = errors.New("linguist: word list is empty")

// FlatConfig configures a FlatLinguist.
type FlatConfig struct {
	// StatesPerWord is the number of emitting HMM states per word.
	// Default: DefaultStatesPerWord.
	StatesPerWord int

	// SelfLoopProbability is the linear probability of an emitting
	// state's self loop; the exit arc gets the remainder.
	// Default: DefaultSelfLoopProbability.
	SelfLoopProbability float64

	// WordInsertionProbability is the linear insertion penalty applied
	// on each word-entry arc. Default: 1.0 (no penalty).
	WordInsertionProbability float64

	// Loop, when true, arcs the end of the last word back to the first
	// word in addition to the final state, producing a continuous loop
	// grammar instead of a single linear utterance.
	Loop bool
}

// FlatLinguist compiles an ordered word list into a linear (optionally
// looped) search space: one non-emitting word state and unit state per
// word followed by a left-to-right chain of emitting HMM states, ending
// in a non-emitting final state.
//
// The graph is built once at construction and is read-only afterwards,
// so a FlatLinguist is safe for concurrent readers.
type FlatLinguist struct {
	words   []string
	initial *flatState
}

// NewFlatLinguist builds a flat search space over words.
func NewFlatLinguist(words []string, cfg FlatConfig) (*FlatLinguist, error) {
	if len(words) == 0 {
		return nil, ErrNoWords
	}
	if cfg.StatesPerWord <= 0 {
		cfg.StatesPerWord = DefaultStatesPerWord
	}
	if cfg.SelfLoopProbability <= 0 || cfg.SelfLoopProbability >= 1 {
		cfg.SelfLoopProbability = DefaultSelfLoopProbability
	}
	if cfg.WordInsertionProbability <= 0 {
		cfg.WordInsertionProbability = 1.0
	}

	fl := &FlatLinguist{words: words}
	fl.build(cfg)
	return fl, nil
}

// Start implements Linguist.
func (fl *FlatLinguist) Start() error { return nil }

// Stop implements Linguist.
func (fl *FlatLinguist) Stop() error { return nil }

// InitialSearchState implements Linguist.
func (fl *FlatLinguist) InitialSearchState() (SearchState, error) {
	return fl.initial, nil
}

// SearchStateOrder implements Linguist.
func (fl *FlatLinguist) SearchStateOrder() []StateClass {
	return []StateClass{ClassWord, ClassUnit, ClassHMM}
}

// Words returns the word list the linguist was built from.
func (fl *FlatLinguist) Words() []string { return fl.words }

func (fl *FlatLinguist) build(cfg FlatConfig) {
	logSelf := math.Log(cfg.SelfLoopProbability)
	logExit := math.Log(1 - cfg.SelfLoopProbability)
	logInsert := math.Log(cfg.WordInsertionProbability)

	fl.initial = &flatState{name: "<start>", class: ClassWord}
	final := &flatState{name: "<final>", class: ClassWord, final: true}

	wordStates := make([]*flatState, len(fl.words))
	exits := make([]*flatState, len(fl.words))

	for i, w := range fl.words {
		ws := &flatState{name: w, class: ClassWord, word: true, history: i}
		us := &flatState{name: w + ".unit", class: ClassUnit, history: i}
		ws.arcs = append(ws.arcs, Arc{State: us, Probability: 0})

		prev := us
		for s := 0; s < cfg.StatesPerWord; s++ {
			hs := &flatState{
				name:     fmt.Sprintf("%s.hmm%d", w, s),
				class:    ClassHMM,
				emitting: true,
				history:  i,
			}
			// Entry into the chain's first state carries no weight;
			// interior transitions carry the exit probability.
			entry := 0.0
			if s > 0 {
				entry = logExit
			}
			prev.arcs = append(prev.arcs, Arc{State: hs, Probability: entry})
			hs.arcs = append(hs.arcs, Arc{State: hs, Probability: logSelf})
			prev = hs
		}
		wordStates[i] = ws
		exits[i] = prev
	}

	// Chain words left to right, then into the final state.
	entryArc := func(target *flatState) Arc {
		return Arc{
			State:                target,
			Probability:          logInsert,
			InsertionProbability: logInsert,
		}
	}
	fl.initial.arcs = append(fl.initial.arcs, entryArc(wordStates[0]))
	for i := range fl.words {
		exit := exits[i]
		if i+1 < len(fl.words) {
			exit.arcs = append(exit.arcs, withWeight(entryArc(wordStates[i+1]), logExit))
		} else {
			exit.arcs = append(exit.arcs, withWeight(Arc{State: final}, logExit))
			if cfg.Loop {
				exit.arcs = append(exit.arcs, withWeight(entryArc(wordStates[0]), logExit))
			}
		}
	}
}

func withWeight(a Arc, extra float64) Arc {
	a.Probability += extra
	return a
}

// flatState is the single state type of the flat linguist.
type flatState struct {
	name     string
	class    StateClass
	emitting bool
	word     bool
	final    bool
	history  int
	arcs     []Arc
}

var (
	_ SearchState = (*flatState)(nil)
	_ HMMState    = (*flatState)(nil)
	_ WordState   = (*flatState)(nil)
)

func (s *flatState) IsEmitting() bool  { return s.emitting }
func (s *flatState) IsWord() bool      { return s.word }
func (s *flatState) IsFinal() bool     { return s.final }
func (s *flatState) Class() StateClass { return s.class }
func (s *flatState) Successors() []Arc { return s.arcs }
func (s *flatState) Key() any          { return s }
func (s *flatState) String() string    { return s.name }

// LexState implements HMMState; each flat state is its own lexical
// position.
func (s *flatState) LexState() any { return s }

// WordHistory implements HMMState; the flat grammar's history is the
// word index.
func (s *flatState) WordHistory() any { return s.history }

// Word implements WordState.
func (s *flatState) Word() string { return s.name }
