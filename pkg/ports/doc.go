/*
Package ports defines the driven ports (interfaces) for the arbor engine.

These interfaces decouple evaluation from external implementations, allowing
models, scenarios and PSA results to live in various storage backends.

# Key Interfaces

  - ModelStore: Persists and loads whole models by name (memory, Redis, files).
  - ResultStore: Records PSA iterations as they complete (SQLite).
  - ScenarioLibrary: Reads and writes named scenarios (Loam markdown).
  - DistributedLocker: Serializes edits and runs of one model across replicas.
  - Evaluator: The engine surface used by the HTTP and MCP adapters.
*/
package ports
