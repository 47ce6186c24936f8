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
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for search operations.
var (
	tracer = otel.Tracer("aleutian.decoder.search")
	meter  = otel.Meter("aleutian.decoder.search")
)

// Metrics for the per-frame search loop.
var (
	scoreLatency  metric.Float64Histogram
	pruneLatency  metric.Float64Histogram
	growLatency   metric.Float64Histogram
	tokensScored  metric.Int64Counter
	tokensCreated metric.Int64Counter
	framesTotal   metric.Int64Counter

	metricsOnce sync.Once
)

// initMetrics lazily initializes the instruments. Failures degrade to
// logging only; the search itself is unaffected.
func initMetrics(logger *slog.Logger) {
	metricsOnce.Do(func() {
		var errs []string
		var err error

		scoreLatency, err = meter.Float64Histogram("search_score_duration_seconds",
			metric.WithDescription("Time spent scoring each emitting stratum"),
			metric.WithUnit("s"),
		)
		if err != nil {
			errs = append(errs, "score_latency: "+err.Error())
		}

		pruneLatency, err = meter.Float64Histogram("search_prune_duration_seconds",
			metric.WithDescription("Time spent pruning active lists"),
			metric.WithUnit("s"),
		)
		if err != nil {
			errs = append(errs, "prune_latency: "+err.Error())
		}

		growLatency, err = meter.Float64Histogram("search_grow_duration_seconds",
			metric.WithDescription("Time spent growing successor tokens"),
			metric.WithUnit("s"),
		)
		if err != nil {
			errs = append(errs, "grow_latency: "+err.Error())
		}

		tokensScored, err = meter.Int64Counter("search_tokens_scored_total",
			metric.WithDescription("Number of tokens scored"),
		)
		if err != nil {
			errs = append(errs, "tokens_scored: "+err.Error())
		}

		tokensCreated, err = meter.Int64Counter("search_tokens_created_total",
			metric.WithDescription("Number of tokens created during growth"),
		)
		if err != nil {
			errs = append(errs, "tokens_created: "+err.Error())
		}

		framesTotal, err = meter.Int64Counter("search_frames_total",
			metric.WithDescription("Number of acoustic frames processed"),
		)
		if err != nil {
			errs = append(errs, "frames: "+err.Error())
		}

		if len(errs) > 0 {
			logger.Error("failed to initialize some search metrics (observability degraded)",
				slog.Int("failed_count", len(errs)),
				slog.Any("errors", errs),
			)
		}
	})
}

func recordLatency(ctx context.Context, h metric.Float64Histogram, start time.Time) {
	if h != nil {
		h.Record(ctx, time.Since(start).Seconds())
	}
}

func addCount(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil && n > 0 {
		c.Add(ctx, n)
	}
}
