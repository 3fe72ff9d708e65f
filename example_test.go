package arbor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/dsl"
)

// ExampleNew_memory demonstrates how to evaluate a model built in Go,
// without reading from the file system.
func ExampleNew_memory() {
	// 1. Describe the decision with the builder
	b := dsl.New("coin", "Payoff")
	b.Root().Chance("Sure").Cost("40")
	gamble := b.Root().Chance("Gamble")
	gamble.Chance("Win").Prob("0.5").Cost("100")
	gamble.Chance("Lose").Prob(dsl.Complement)

	store, err := b.Store()
	if err != nil {
		log.Fatal(err)
	}

	// 2. Initialize Arbor with the in-memory store
	// Note: We leave dir empty ("") because we are providing a store.
	eng, err := arbor.New("", arbor.WithStore(store))
	if err != nil {
		log.Fatal(err)
	}

	// 3. Load and evaluate
	ctx := context.Background()
	m, err := eng.Load(ctx, "coin")
	if err != nil {
		log.Fatal(err)
	}
	res, err := eng.Run(ctx, m)
	if err != nil {
		log.Fatal(err)
	}

	for _, br := range res.Branches {
		fmt.Printf("%s %.0f chosen=%v\n", br.Name, br.Values[0], br.Chosen)
	}

	// Output:
	// Sure 40 chosen=false
	// Gamble 50 chosen=true
}
