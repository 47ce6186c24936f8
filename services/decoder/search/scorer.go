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

import "context"

// Scorer computes acoustic scores for one frame's emitting tokens.
//
// A Scorer is atomic from the search manager's perspective: one call
// scores an entire stratum against the next feature frame and returns.
// Implementations may parallelize internally but must present this
// sequential interface, and they are the sole writer of tokens'
// acoustic scores.
type Scorer interface {
	// Start prepares the scorer for an utterance.
	Start() error

	// Stop releases per-utterance resources.
	Stop() error

	// CalculateScores consumes the next feature frame, finalizes the
	// acoustic score of every token in the stratum (folding it into
	// each token's path score), and returns the best-scoring token.
	//
	// A nil token with a nil error means no more frames are available;
	// the utterance ends normally. A non-nil error aborts the
	// utterance.
	CalculateScores(ctx context.Context, tokens []*Token) (*Token, error)
}
