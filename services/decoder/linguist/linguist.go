// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package linguist defines the search-space contracts consumed by the
// decoder's search manager.
//
// A linguist compiles language knowledge (grammar, lexicon, phonetic
// units) into a static directed graph of search states. The search
// manager explores that graph frame by frame; the graph itself is
// read-only during recognition.
//
// # Ownership Model
//
// The linguist owns the state graph. States handed to the search manager
// MUST NOT change identity, class, or successor sets for the duration of
// an utterance. The search manager stores states as map keys, so Key()
// must return a comparable value that is stable for the utterance.
//
// # State Classes
//
// Every state carries a StateClass tag. The linguist declares the full
// class ordering via SearchStateOrder: all non-emitting classes strictly
// before emitting classes. The search manager uses the ordering to
// stratify its active lists and, optionally, to assert that arcs never
// target a class that sorts before their source (emitting states may
// target any class).
package linguist

// StateClass is a dense, non-negative class tag assigned by the linguist.
// Class values are only meaningful relative to the ordering declared by
// SearchStateOrder.
type StateClass int

// Arc is a transition out of a search state. All probabilities are
// natural-log domain; Probability is the total arc weight and already
// includes the language and insertion components.
type Arc struct {
	// State is the target search state.
	State SearchState

	// Probability is the total transition log-probability.
	Probability float64

	// LanguageProbability is the language-model component.
	LanguageProbability float64

	// InsertionProbability is the insertion-penalty component.
	InsertionProbability float64
}

// SearchState is a node in the linguist's static search graph.
type SearchState interface {
	// IsEmitting reports whether advancing through this state consumes
	// an acoustic frame.
	IsEmitting() bool

	// IsWord reports whether traversal of this state marks a word boundary.
	IsWord() bool

	// IsFinal reports whether this state terminates the search space.
	IsFinal() bool

	// Class returns the state's class tag.
	Class() StateClass

	// Successors returns the outgoing arcs. The returned slice must not
	// be mutated by the caller.
	Successors() []Arc

	// Key returns a comparable identity for this state, stable for the
	// utterance. Two states with equal keys are the same state.
	Key() any

	// String returns a short human-readable description, used in logs
	// and error messages.
	String() string
}

// HMMState is an optional capability of emitting states that expose
// their lexical position and word history. When the search manager runs
// with a bounded token heap per state, emitting states implementing
// HMMState are keyed by (LexState, WordHistory) so that parallel paths
// through the same HMM with the same history collapse.
type HMMState interface {
	SearchState

	// LexState returns a comparable identity for the lexical HMM position.
	LexState() any

	// WordHistory returns a comparable identity for the word history.
	WordHistory() any
}

// WordState is an optional capability of word states that expose their
// word label for result and lattice construction.
type WordState interface {
	SearchState

	// Word returns the word label.
	Word() string
}

// Linguist compiles and exposes a search space.
type Linguist interface {
	// Start prepares the linguist for an utterance.
	Start() error

	// Stop releases per-utterance resources.
	Stop() error

	// InitialSearchState returns the entry state of the search space.
	InitialSearchState() (SearchState, error)

	// SearchStateOrder returns the full state-class ordering:
	// non-emitting classes first, emitting classes last.
	SearchStateOrder() []StateClass
}
