// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package run orchestrates one embodied-carbon impact run end to end.
//
// # Overview
//
// The run package fetches a model graph and a reference dataset from the
// model store, drives classification, factor resolution, and impact
// calculation over every structural subtree, publishes the modified graph
// as a new model version, and reports the outcome through a status sink.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                        Impact Run Pipeline                           │
//	├─────────────────────────────────────────────────────────────────────┤
//	│                                                                      │
//	│  ┌──────────────┐     ┌──────────────┐     ┌──────────────┐        │
//	│  │    Model     │────▶│  Reference   │────▶│   Classify   │        │
//	│  │    Fetch     │     │    Parse     │     │  (per tree)  │        │
//	│  └──────────────┘     └──────────────┘     └──────────────┘        │
//	│                                                   │                 │
//	│                                                   ▼                 │
//	│  ┌──────────────┐     ┌──────────────┐     ┌──────────────┐        │
//	│  │   Publish    │◀────│  Calculate   │◀────│   Resolve    │        │
//	│  │   Version    │     │  and Attach  │     │   Factors    │        │
//	│  └──────────────┘     └──────────────┘     └──────────────┘        │
//	│         │                                                           │
//	│         ▼                                                           │
//	│  ┌──────────────┐                                                   │
//	│  │    Status    │                                                   │
//	│  │     Sink     │                                                   │
//	│  └──────────────┘                                                   │
//	└─────────────────────────────────────────────────────────────────────┘
//
// Subtrees are processed strictly in sequence. A fatal condition in any
// subtree aborts the run before anything is published; warnings accumulate
// without stopping it.
//
// # Usage
//
//	runner := run.NewRunner(storeClient, sink, logger)
//	result, err := runner.Execute(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Summary())
//
// # Thread Safety
//
// Runner is safe for concurrent use. Each Execute call operates on its
// own fetched graph.
package run
