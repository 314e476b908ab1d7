// Package sig reads and writes ECMA-335 signature blobs.
//
// Parsing produces an immutable tree of Node values. Every node records the
// exact byte span it was parsed from, so callers can copy types verbatim or
// locate generic arguments without re-encoding. Substitute rewrites a type
// by replacing generic parameters with caller-supplied argument spans.
//
// Writers enforce their declared shape: a MethodSigWriter created for two
// parameters fails at Bytes unless exactly the return value and two
// parameters were written, and each nested TypeWriter must be finished
// before its parent moves on.
//
// Malformed blobs produce format errors and misuse of a writer produces
// logic errors; see the errors package for classification.
package sig
