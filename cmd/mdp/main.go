// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command mdp validates, solves and simulates Markov decision processes
// written as specification documents.
//
// Usage:
//
//	mdp examples
//	mdp examples two-round-nmdp > spec.yaml
//	mdp validate spec.yaml
//	mdp solve spec.yaml --mode q --chart charts/run.html
//	mdp simulate spec.yaml --episodes 1000 --seed 7
//	mdp watch spec.yaml
//	mdp serve --port 8088
//
// Every FILE argument may also name a built-in example.
//
// Example requests against `mdp serve`:
//
//	# Health check
//	curl http://localhost:8088/v1/mdp/health
//
//	# Solve a built-in example
//	curl -X POST http://localhost:8088/v1/mdp/solve \
//	  -H "Content-Type: application/json" \
//	  -d '{"example": "multi-round-nmdp", "mode": "q"}'
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
