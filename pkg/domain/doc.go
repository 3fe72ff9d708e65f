/*
Package domain contains the core data model of the arbor evaluator.

It defines the decision tree itself, the model context that expressions are
resolved against, and the scenarios that override parts of that context.
The package is kept free of I/O and persistence, following Hexagonal
Architecture principles; adapters live under pkg/adapters.

# Key Entities

  - Node: a typed point in the tree (Decision, Chance, Markov chain,
    Markov state or state Transition) with a kind-specific Payload.
  - Tree: an arena of nodes addressed by index. Index 0 is the root.
  - Model: the tree plus Parameters, Variables, Tables, outcome dimensions
    and Markov settings. Model implements expr.Env.
  - Scenario: a named set of expression overrides and run settings.

Structural edits (AddChild, RemoveSubtree, PasteSubtree, ChangeType) keep
child indices, chain pointers and state-name lists consistent.
*/
package domain
