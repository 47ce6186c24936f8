// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command decoder runs the AleutianSpeech search core over a synthetic
// utterance. It exists to exercise and demonstrate the decoder without
// an acoustic front end: a flat word-list linguist, a synthetic feature
// source, and a toy acoustic model stand in for the real collaborators.
//
// Usage:
//
//	decoder decode --words "arctic fox den" --frames 60
//	decoder decode --config decoder.yaml --words "hello world" --lattice
//	decoder version
//
// Metrics collected during the decode (score/prune/grow latency, token
// counts) are flushed to stdout through the OpenTelemetry stdout
// exporter when --metrics is set.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped by the build.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "decoder",
		Short:         "AleutianSpeech word-pruning breadth-first decoder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDecodeCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "decoder:", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the decoder version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
