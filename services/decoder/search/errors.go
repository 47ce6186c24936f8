// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search implements the word-pruning breadth-first token search
// at the heart of the decoder.
//
// The search manager explores, frame by frame, the set of partial
// hypotheses (tokens) that could explain the acoustic observations so
// far. Each frame it scores the emitting tokens, prunes the unpromising
// ones, and grows survivors into their successor states: first the
// emitting successors, then every non-emitting stratum in state-class
// order until the epsilon closure is complete. At end of utterance the
// surviving terminal tokens, together with the recorded alternate
// predecessors, form a word lattice.
//
// All scores and probabilities are natural-log domain: addition here is
// multiplication in the linear domain.
//
// # Ownership Model
//
// Tokens form a reverse tree through their predecessor pointers, plus
// lattice edges held by the AlternateHypothesisManager. The search
// manager creates tokens during growth; a token stays reachable as long
// as any successor, result entry, or alternate edge refers to it, and is
// collected with the rest of the utterance once the caller drops the
// final Result.
//
// # Thread Safety
//
// The search is single-threaded: all token, active-list, and map
// mutations happen on the caller's goroutine. The Scorer may use
// internal parallelism but presents a sequential per-frame interface.
package search

import "errors"

// Sentinel errors for search operations.
var (
	// ErrNotStarted is returned when Recognize is called before Start.
	ErrNotStarted = errors.New("search manager not started")

	// ErrAlreadyStarted is returned when Start is called twice without
	// an intervening Stop.
	ErrAlreadyStarted = errors.New("search manager already started")

	// ErrEmptyStateOrder is returned when the linguist declares no
	// state-class ordering.
	ErrEmptyStateOrder = errors.New("linguist declared an empty state order")

	// ErrUnknownStateClass is returned when a token's state class does
	// not appear in the linguist's declared state order. This is a
	// programmer error in the linguist and aborts the utterance.
	ErrUnknownStateClass = errors.New("state class not in state order")

	// ErrStateOrder is returned, when state-order checking is enabled,
	// for an arc from a non-emitting state to a state whose class sorts
	// strictly earlier. This is a programmer error in the linguist and
	// aborts the utterance.
	ErrStateOrder = errors.New("illegal state order transition")

	// ErrNoInitialState is returned when the linguist produces no
	// initial search state.
	ErrNoInitialState = errors.New("linguist returned no initial state")
)
