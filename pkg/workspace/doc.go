// Package workspace serializes access to stored models. Edits and
// evaluations of the same model never interleave, within one process and,
// with a DistributedLocker, across replicas.
package workspace
