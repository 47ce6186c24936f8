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

// Pruner removes unpromising tokens from an active list between scoring
// and growth.
type Pruner interface {
	// Start prepares the pruner for an utterance.
	Start() error

	// Stop releases per-utterance resources.
	Stop() error

	// Prune returns an active list (possibly the same object)
	// containing a subset of the input's tokens.
	Prune(list ActiveList) (ActiveList, error)
}

// SimplePruner performs default pruning: it delegates to the active
// list's own Purge, which applies the configured absolute beam.
type SimplePruner struct{}

var _ Pruner = (*SimplePruner)(nil)

// NewSimplePruner creates a SimplePruner.
func NewSimplePruner() *SimplePruner { return &SimplePruner{} }

// Start implements Pruner.
func (p *SimplePruner) Start() error { return nil }

// Stop implements Pruner.
func (p *SimplePruner) Stop() error { return nil }

// Prune implements Pruner.
func (p *SimplePruner) Prune(list ActiveList) (ActiveList, error) {
	return list.Purge(), nil
}
