/*
Package dsl provides a fluent Go builder for arbor models.

It lets tests and programs assemble a decision tree in code instead of
writing JSON, YAML or HCL by hand. Construction errors are collected and
reported once by Build.

Example usage:

	b := dsl.New("coin", "Payoff")
	b.Param("pWin", "Beta(50, 50)")

	root := b.Root()
	root.Chance("Sure").Cost("40")

	gamble := root.Chance("Gamble")
	gamble.Chance("Win").Prob("pWin").Cost("100")
	gamble.Chance("Lose").Prob(dsl.Complement)

	m, err := b.Build()
	// ... pass m to arbor.Run(...)

Markov chains follow the same shape:

	chain := root.Markov("Cohort").Termination("t == 20")
	well := chain.State("Well").Prob("1").Rewards("1")
	well.To("Dead", "0.1")
	well.To("Well", dsl.Complement)
	chain.State("Dead").Prob("0").To("Dead", "1")
*/
package dsl
