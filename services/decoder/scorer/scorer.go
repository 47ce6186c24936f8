// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scorer provides a concrete acoustic scorer for the search
// manager: it pulls feature frames from a FeatureSource and scores each
// emitting token's state against the frame with an AcousticModel.
//
// Scoring within a frame fans out across tokens with a bounded worker
// pool, but the scorer presents the sequential per-frame interface the
// search core requires: one CalculateScores call consumes exactly one
// frame, except for an empty stratum, which consumes none and ends the
// utterance.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/search"
)

// ErrEndOfStream is returned by a FeatureSource when the utterance's
// frames are exhausted. The scorer translates it into the core's normal
// end-of-utterance signal.
var ErrEndOfStream = errors.New("scorer: end of feature stream")

// FeatureSource produces acoustic feature frames for one utterance.
type FeatureSource interface {
	// NextFrame returns the next feature vector, or ErrEndOfStream when
	// the utterance is exhausted.
	NextFrame(ctx context.Context) ([]float32, error)
}

// AcousticModel scores a search state against one feature frame,
// returning a natural-log likelihood.
type AcousticModel interface {
	Score(state linguist.SearchState, feature []float32) float64
}

// AcousticModelFunc adapts a function to the AcousticModel interface.
type AcousticModelFunc func(state linguist.SearchState, feature []float32) float64

// Score implements AcousticModel.
func (f AcousticModelFunc) Score(state linguist.SearchState, feature []float32) float64 {
	return f(state, feature)
}

// FrameScorer is a search.Scorer over a FeatureSource and AcousticModel.
//
// Thread Safety: a FrameScorer serves one search manager; its methods
// must be called from one goroutine. Internally it parallelizes token
// scoring per frame.
type FrameScorer struct {
	source  FeatureSource
	model   AcousticModel
	logger  *slog.Logger
	workers int
}

var _ search.Scorer = (*FrameScorer)(nil)

// FrameScorerOption configures a FrameScorer.
type FrameScorerOption func(*FrameScorer)

// WithWorkers bounds the per-frame scoring parallelism. Values < 1
// fall back to runtime.NumCPU().
func WithWorkers(n int) FrameScorerOption {
	return func(s *FrameScorer) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// WithLogger sets the scorer's logger.
func WithLogger(logger *slog.Logger) FrameScorerOption {
	return func(s *FrameScorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFrameScorer creates a FrameScorer.
func NewFrameScorer(source FeatureSource, model AcousticModel, opts ...FrameScorerOption) (*FrameScorer, error) {
	if source == nil || model == nil {
		return nil, errors.New("scorer: feature source and acoustic model are required")
	}
	s := &FrameScorer{
		source:  source,
		model:   model,
		logger:  slog.Default(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start implements search.Scorer.
func (s *FrameScorer) Start() error { return nil }

// Stop implements search.Scorer.
func (s *FrameScorer) Stop() error { return nil }

// CalculateScores implements search.Scorer. It consumes the next frame,
// finalizes every token's acoustic score, and returns the best token.
// A nil token with nil error signals end of stream; an empty stratum
// returns that signal without reading a frame.
func (s *FrameScorer) CalculateScores(ctx context.Context, tokens []*search.Token) (*search.Token, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	feature, err := s.source.NextFrame(ctx)
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			return nil, nil
		}
		return nil, fmt.Errorf("next frame: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, t := range tokens {
		t := t
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			t.ApplyAcousticScore(s.model.Score(t.SearchState(), feature))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score tokens: %w", err)
	}

	best := tokens[0]
	for _, t := range tokens[1:] {
		if t.Score() > best.Score() {
			best = t
		}
	}
	return best, nil
}

// SyntheticSource is a deterministic FeatureSource producing a fixed
// number of frames. Frame i is a vector whose components trace slow
// sinusoids of the frame index, which is enough to drive demo decodes
// and tests without audio input.
type SyntheticSource struct {
	frames    int
	dimension int
	emitted   int
}

// NewSyntheticSource creates a source of n frames of the given
// dimension.
func NewSyntheticSource(n, dimension int) *SyntheticSource {
	if dimension <= 0 {
		dimension = 13
	}
	return &SyntheticSource{frames: n, dimension: dimension}
}

// NextFrame implements FeatureSource.
func (s *SyntheticSource) NextFrame(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.emitted >= s.frames {
		return nil, ErrEndOfStream
	}
	frame := make([]float32, s.dimension)
	for d := range frame {
		frame[d] = float32(math.Sin(float64(s.emitted)/10 + float64(d)))
	}
	s.emitted++
	return frame, nil
}
