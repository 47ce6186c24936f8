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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
)

// Manager drives the word-pruning breadth-first search.
//
// To perform recognition, call Start once, then Recognize repeatedly
// until the returned Result reports IsFinal, then Stop. Reentering
// Start after Stop begins a fresh utterance at frame zero.
//
// Each frame the manager takes the emitting stratum, has the scorer
// finalize its acoustic scores, prunes it, and grows survivors: emitting
// successors land in the next frame's emitting stratum, non-emitting
// successors are drained stratum by stratum in state-class order until
// the epsilon closure is complete. Re-entry into a state already holding
// a better-scoring token is blocked by the best-token map, which is what
// terminates growth through epsilon cycles.
//
// # Thread Safety
//
// Manager is NOT safe for concurrent use. All calls must come from one
// goroutine; the scorer may parallelize internally behind its
// sequential interface.
type Manager struct {
	linguist linguist.Linguist
	scorer   Scorer
	pruner   Pruner
	logger   *slog.Logger

	cfg     Config
	factory ActiveListFactory

	// relativeBeamWidth is the configured linear beam converted to the
	// log domain; -Inf when gating is disabled.
	relativeBeamWidth float64

	stateOrder []linguist.StateClass
	classIndex map[linguist.StateClass]int

	currentFrame int
	activeList   ActiveList
	activeBucket ActiveListManager
	bestTokens   *BestTokenMap
	loserManager *AlternateHypothesisManager
	resultList   []*Token

	utteranceID string
	started     bool
	done        bool

	// Per-utterance counters, reported at Stop.
	uttTokensScored  int64
	uttTokensCreated int64
}

// NewManager creates a search manager over the given collaborators.
//
// The configuration should come from DefaultConfig or LoadConfig; it is
// validated here. Options may override the logger and the active-list
// factory.
func NewManager(ling linguist.Linguist, scorer Scorer, pruner Pruner,
	cfg Config, opts ...Option) (*Manager, error) {
	if ling == nil || scorer == nil || pruner == nil {
		return nil, errors.New("search: linguist, scorer, and pruner are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		linguist: ling,
		scorer:   scorer,
		pruner:   pruner,
		logger:   slog.Default(),
		cfg:      cfg,
	}
	m.relativeBeamWidth = linearToLog(cfg.RelativeBeamWidth)
	m.factory = func() ActiveList {
		return NewSimpleActiveList(cfg.AbsoluteBeamWidth, m.relativeBeamWidth)
	}

	for _, opt := range opts {
		opt(m)
	}

	initMetrics(m.logger)
	return m, nil
}

// linearToLog converts a linear-domain probability to natural log;
// zero maps to -Inf (gating disabled, every token passes).
func linearToLog(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return math.Log(linear)
}

// Start starts the collaborators and seeds the search with the initial
// state's token, growing it so the first emitting stratum is populated
// before any frame is scored.
func (m *Manager) Start(ctx context.Context) error {
	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.linguist.Start(); err != nil {
		return fmt.Errorf("start linguist: %w", err)
	}
	if err := m.pruner.Start(); err != nil {
		return fmt.Errorf("start pruner: %w", err)
	}
	if err := m.scorer.Start(); err != nil {
		return fmt.Errorf("start scorer: %w", err)
	}
	if err := m.localStart(ctx); err != nil {
		return err
	}
	m.started = true

	m.logger.Info("utterance started",
		slog.String("utterance_id", m.utteranceID),
		slog.Int("state_classes", len(m.stateOrder)),
		slog.Bool("build_word_lattice", m.cfg.BuildWordLattice),
	)
	return nil
}

func (m *Manager) localStart(ctx context.Context) error {
	m.utteranceID = uuid.NewString()
	m.currentFrame = 0
	m.done = false
	m.uttTokensScored = 0
	m.uttTokensCreated = 0

	m.stateOrder = m.linguist.SearchStateOrder()
	if len(m.stateOrder) == 0 {
		return ErrEmptyStateOrder
	}
	m.classIndex = make(map[linguist.StateClass]int, len(m.stateOrder))
	for i, c := range m.stateOrder {
		m.classIndex[c] = i
	}

	bucket, err := NewSimpleActiveListManager(m.stateOrder, m.factory)
	if err != nil {
		return err
	}
	m.activeBucket = bucket

	m.loserManager = nil
	if m.cfg.BuildWordLattice {
		m.loserManager = NewAlternateHypothesisManager()
	}

	initial, err := m.linguist.InitialSearchState()
	if err != nil {
		return fmt.Errorf("initial search state: %w", err)
	}
	if initial == nil {
		return ErrNoInitialState
	}

	m.activeList = m.factory()
	m.activeList.Add(NewInitialToken(initial, m.currentFrame))
	m.resultList = nil
	m.bestTokens = NewBestTokenMap(1, m.cfg.MaxTokenHeapSize)

	if err := m.growBranches(ctx); err != nil {
		return err
	}
	return m.growNonEmittingLists(ctx)
}

// Recognize performs up to nFrames iterations of the per-frame loop,
// stopping early when the scorer signals end of stream, and returns the
// current result snapshot.
//
// Recognize(k) then Recognize(m) is equivalent to Recognize(k+m) except
// for the intermediate snapshot. A fatal collaborator error aborts the
// utterance.
func (m *Manager) Recognize(ctx context.Context, nFrames int) (*Result, error) {
	if !m.started {
		return nil, ErrNotStarted
	}

	ctx, span := tracer.Start(ctx, "search.recognize",
		trace.WithAttributes(
			attribute.String("utterance_id", m.utteranceID),
			attribute.Int("n_frames", nFrames),
		),
	)
	defer span.End()

	for i := 0; i < nFrames && !m.done; i++ {
		if err := m.recognizeFrame(ctx); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	result := NewResult(m.loserManager, m.activeList, m.resultList,
		m.currentFrame, m.done)

	if m.cfg.ShowTokenCount {
		m.showTokenCount()
	}
	return result, nil
}

// recognizeFrame runs one iteration: score, prune, grow emitting, grow
// non-emitting to fixpoint. With grow skipping enabled, score-only
// iterations advance the frame counter without touching the lattice.
func (m *Manager) recognizeFrame(ctx context.Context) error {
	list := m.activeBucket.EmittingList()
	if list == nil {
		list = m.factory()
	}
	m.activeList = list

	for {
		m.currentFrame++
		more, err := m.scoreTokens(ctx)
		if err != nil {
			return err
		}
		if !more {
			m.done = true
			return nil
		}
		if m.cfg.GrowSkipInterval > 1 && m.currentFrame%m.cfg.GrowSkipInterval == 0 {
			continue
		}
		break
	}

	m.bestTokens = m.createBestTokenMap()
	if err := m.pruneBranches(ctx); err != nil {
		return err
	}
	m.resultList = nil
	if err := m.growEmittingBranches(ctx); err != nil {
		return err
	}
	return m.growNonEmittingLists(ctx)
}

// createBestTokenMap sizes the fresh map off the stratum about to grow.
func (m *Manager) createBestTokenMap() *BestTokenMap {
	return NewBestTokenMap(m.activeList.Size()*2, m.cfg.MaxTokenHeapSize)
}

// scoreTokens has the scorer finalize acoustic scores for the current
// stratum. Returns false when the scorer reports end of stream.
func (m *Manager) scoreTokens(ctx context.Context) (bool, error) {
	start := time.Now()
	best, err := m.scorer.CalculateScores(ctx, m.activeList.Tokens())
	recordLatency(ctx, scoreLatency, start)
	if err != nil {
		return false, fmt.Errorf("score frame %d: %w", m.currentFrame, err)
	}

	n := int64(m.activeList.Size())
	m.uttTokensScored += n
	addCount(ctx, tokensScored, n)
	addCount(ctx, framesTotal, 1)

	if best == nil {
		return false, nil
	}
	m.activeList.SetBestToken(best)
	return true, nil
}

// pruneBranches replaces the active list with its pruned form.
func (m *Manager) pruneBranches(ctx context.Context) error {
	start := time.Now()
	pruned, err := m.pruner.Prune(m.activeList)
	recordLatency(ctx, pruneLatency, start)
	if err != nil {
		return fmt.Errorf("prune frame %d: %w", m.currentFrame, err)
	}
	m.activeList = pruned
	return nil
}

// growBranches expands every token at or above the relative beam
// threshold.
func (m *Manager) growBranches(ctx context.Context) error {
	start := time.Now()
	defer recordLatency(ctx, growLatency, start)

	threshold := m.activeList.BeamThreshold()
	for _, t := range m.activeList.Tokens() {
		if t.Score() >= threshold {
			if err := m.collectSuccessors(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// growEmittingBranches grows the scored stratum. With acoustic lookahead
// enabled, each token is gated on a working score projected from the
// rate of change of its acoustic score instead of its raw path score;
// path scores themselves are untouched.
func (m *Manager) growEmittingBranches(ctx context.Context) error {
	if m.cfg.AcousticLookaheadFrames <= 0 {
		return m.growBranches(ctx)
	}

	start := time.Now()
	defer recordLatency(ctx, growLatency, start)

	bestWorking := math.Inf(-1)
	for _, t := range m.activeList.Tokens() {
		delta := 0.0
		if p := t.LastEmittingAncestor(); p != nil {
			delta = t.AcousticScore() - p.AcousticScore()
		}
		working := t.Score() +
			(t.AcousticScore()+delta)*m.cfg.AcousticLookaheadFrames
		if working > bestWorking {
			bestWorking = working
		}
		t.SetWorkingScore(working)
	}

	threshold := bestWorking + m.relativeBeamWidth
	for _, t := range m.activeList.Tokens() {
		if t.WorkingScore() >= threshold {
			if err := m.collectSuccessors(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// growNonEmittingLists drains the non-emitting strata in state-class
// order, pruning and growing each until all are empty.
func (m *Manager) growNonEmittingLists(ctx context.Context) error {
	for {
		list := m.activeBucket.NextNonEmittingList()
		if list == nil {
			return nil
		}
		m.activeList = list
		if err := m.pruneBranches(ctx); err != nil {
			return err
		}
		if err := m.growBranches(ctx); err != nil {
			return err
		}
	}
}

// collectSuccessors expands one token. Final tokens contribute their
// wordPredecessor to the result list; all others spawn successor tokens
// gated by the best-token-per-state rule.
func (m *Manager) collectSuccessors(ctx context.Context, token *Token) error {
	if token.IsFinal() {
		m.resultList = append(m.resultList, m.wordPredecessor(token))
		return nil
	}

	state := token.SearchState()
	predecessor := m.wordPredecessor(token)

	for _, arc := range state.Successors() {
		next := arc.State

		if m.cfg.CheckStateOrder {
			if err := m.checkStateOrder(state, next); err != nil {
				return err
			}
		}

		// Log-domain add is a linear-domain multiply.
		entryScore := token.Score() + arc.Probability

		best := m.bestTokens.Get(next)
		if best == nil || best.Score() < entryScore {
			created := NewToken(predecessor, next, entryScore,
				arc.LanguageProbability, arc.InsertionProbability,
				m.currentFrame)
			m.uttTokensCreated++
			addCount(ctx, tokensCreated, 1)

			m.bestTokens.Put(next, created)
			if best == nil {
				if err := m.activeBucket.Add(created); err != nil {
					return err
				}
			} else {
				if err := m.activeBucket.Replace(best, created); err != nil {
					return err
				}
				if m.loserManager != nil && created.IsWord() {
					// The loser's ancestry must survive its removal:
					// move its recorded alternates and keep its own
					// predecessor as an alternate edge.
					m.loserManager.ChangeSuccessor(created, best)
					m.loserManager.AddAlternatePredecessor(created, best.Predecessor())
				}
			}
		} else if m.loserManager != nil && next.IsWord() && predecessor != nil {
			m.loserManager.AddAlternatePredecessor(best, predecessor)
		}
	}
	return nil
}

// wordPredecessor returns the predecessor to record on successors grown
// from token: token itself when keeping all tokens, otherwise its most
// recent word ancestor. Collapsing non-word intermediates keeps the
// lattice compact.
func (m *Manager) wordPredecessor(token *Token) *Token {
	if m.cfg.KeepAllTokens {
		return token
	}
	return token.WordToken()
}

// checkStateOrder asserts that the arc from -> to does not move to a
// class sorting strictly earlier. Emitting sources may target any
// class: they begin a new frame.
func (m *Manager) checkStateOrder(from, to linguist.SearchState) error {
	if from.IsEmitting() {
		return nil
	}
	fromIdx, ok := m.classIndex[from.Class()]
	if !ok {
		return fmt.Errorf("%w: class %d (state %s)",
			ErrUnknownStateClass, from.Class(), from)
	}
	toIdx, ok := m.classIndex[to.Class()]
	if !ok {
		return fmt.Errorf("%w: class %d (state %s)",
			ErrUnknownStateClass, to.Class(), to)
	}
	if toIdx < fromIdx {
		return fmt.Errorf("%w: from %s (class %d) to %s (class %d)",
			ErrStateOrder, from, from.Class(), to, to.Class())
	}
	return nil
}

// Stop stops the collaborators. The final result list is preserved and
// remains readable from the last Result snapshot.
func (m *Manager) Stop() error {
	if !m.started {
		return nil
	}
	m.started = false

	m.logger.Info("utterance stopped",
		slog.String("utterance_id", m.utteranceID),
		slog.Int("frames", m.currentFrame),
		slog.Int64("tokens_scored", m.uttTokensScored),
		slog.Int64("tokens_created", m.uttTokensCreated),
		slog.Bool("final", m.done),
	)

	return errors.Join(
		m.scorer.Stop(),
		m.pruner.Stop(),
		m.linguist.Stop(),
	)
}

// CurrentFrameNumber returns the frame the recognizer has processed up
// to.
func (m *Manager) CurrentFrameNumber() int { return m.currentFrame }

// showTokenCount walks the live lattice and logs its size. Expensive;
// gated behind the ShowTokenCount option.
func (m *Manager) showTokenCount() {
	seen := make(map[*Token]struct{})
	if m.activeList != nil {
		for _, t := range m.activeList.Tokens() {
			for ; t != nil; t = t.Predecessor() {
				seen[t] = struct{}{}
			}
		}
	}
	active := len(seen)

	seen = make(map[*Token]struct{})
	for _, t := range m.resultList {
		for ; t != nil; t = t.Predecessor() {
			seen[t] = struct{}{}
		}
	}

	m.logger.Debug("token lattice size",
		slog.String("utterance_id", m.utteranceID),
		slog.Int("frame", m.currentFrame),
		slog.Int("active_lattice", active),
		slog.Int("result_lattice", len(seen)),
	)
}
