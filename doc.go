/*
Package arbor evaluates decision trees and Markov cohort models for
decision analysis and cost-effectiveness studies.

A model is a tree of decision, chance and Markov chain nodes whose
probabilities, costs and rewards are expressions over named parameters,
variables and tables. The engine rolls the tree back to expected values
per outcome dimension, picks the optimal branch at decision nodes and,
for cost-effectiveness models, ranks strategies by ICER.

# Concept

Arbor keeps the model (Logic) apart from how it is stored and how
results are consumed. Models live in a ModelStore (a directory of JSON,
YAML or HCL files by default), what-if scenarios live in a
ScenarioLibrary (Markdown documents read through Loam), and PSA
iterations can be streamed into a ResultStore. The same Engine backs the
CLI, the HTTP API and the MCP server.

# Key Features

  - Deterministic rollouts with per-node expected values and Markov chain traces.
  - Probabilistic sensitivity analysis with common random numbers and parallel workers.
  - Scenarios that override parameters without editing the model.
  - Fail-soft validation that reports every issue before a run.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/arbor"
	)

	func main() {
		// Open the workspace at ./study (models/ and scenarios/)
		eng, err := arbor.New("./study")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		m, err := eng.Load(ctx, "screening")
		if err != nil {
			log.Fatal(err)
		}

		res, err := eng.Run(ctx, m)
		if err != nil {
			log.Fatal(err)
		}
		for _, b := range res.Branches {
			fmt.Println(b.Name, b.Values, b.Chosen)
		}
	}
*/
package arbor
