// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/AleutianAI/AleutianSpeech/pkg/logging"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/lattice"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/linguist"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/scorer"
	"github.com/AleutianAI/AleutianSpeech/services/decoder/search"
)

type decodeFlags struct {
	configPath    string
	words         string
	frames        int
	statesPerWord int
	loop          bool
	showLattice   bool
	metrics       bool
	logLevel      string
}

func newDecodeCommand() *cobra.Command {
	flags := &decodeFlags{}

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a synthetic utterance over a flat word grammar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "path to a YAML search configuration")
	cmd.Flags().StringVar(&flags.words, "words", "aleutian speech decoder", "space-separated word list for the grammar")
	cmd.Flags().IntVar(&flags.frames, "frames", 60, "number of synthetic feature frames")
	cmd.Flags().IntVar(&flags.statesPerWord, "states-per-word", linguist.DefaultStatesPerWord, "HMM states per word")
	cmd.Flags().BoolVar(&flags.loop, "loop", false, "loop the grammar instead of decoding one pass")
	cmd.Flags().BoolVar(&flags.showLattice, "lattice", false, "print a word-lattice summary")
	cmd.Flags().BoolVar(&flags.metrics, "metrics", false, "flush OpenTelemetry metrics to stdout on exit")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runDecode(ctx context.Context, flags *decodeFlags) error {
	logger, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(flags.logLevel),
		Service: "decoder",
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	if flags.metrics {
		shutdown, err := setupMetrics(ctx)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	words := strings.Fields(flags.words)
	ling, err := linguist.NewFlatLinguist(words, linguist.FlatConfig{
		StatesPerWord: flags.statesPerWord,
		Loop:          flags.loop,
	})
	if err != nil {
		return err
	}

	cfg, err := search.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	source := scorer.NewSyntheticSource(flags.frames, 13)
	frameScorer, err := scorer.NewFrameScorer(source, demoModel(), scorer.WithLogger(logger.Logger))
	if err != nil {
		return err
	}

	manager, err := search.NewManager(ling, frameScorer, search.NewSimplePruner(),
		cfg, search.WithLogger(logger.Logger))
	if err != nil {
		return err
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	var result *search.Result
	for {
		result, err = manager.Recognize(ctx, 50)
		if err != nil {
			return err
		}
		if result.IsFinal() {
			break
		}
	}

	fmt.Printf("frames: %d\n", result.FrameNumber())
	fmt.Printf("hypotheses: %d\n", len(result.Tokens()))
	fmt.Printf("transcription: %q\n", result.BestTranscription())

	if flags.showLattice {
		lat, err := lattice.Build(result)
		if err != nil {
			return err
		}
		fmt.Printf("lattice: %s (density %.2f)\n", lat, lat.Density())
	}
	return nil
}

// setupMetrics installs a meter provider that dumps collected metrics
// to stdout when the decode finishes.
func setupMetrics(ctx context.Context) (func(), error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)
	return func() { _ = provider.Shutdown(ctx) }, nil
}

// demoModel is a toy acoustic model: each state gets a stable bias from
// a hash of its name, and the score is the negative squared distance
// between that bias and the frame's mean, minus one. It has no phonetic merit; it
// exists to make demo decodes deterministic and non-degenerate.
func demoModel() scorer.AcousticModel {
	return scorer.AcousticModelFunc(func(state linguist.SearchState, feature []float32) float64 {
		h := fnv.New32a()
		h.Write([]byte(state.String()))
		bias := float64(h.Sum32()%100)/100 - 0.5

		var mean float64
		for _, f := range feature {
			mean += float64(f)
		}
		mean /= float64(len(feature))

		d := mean - bias
		return -d*d - 1
	})
}
