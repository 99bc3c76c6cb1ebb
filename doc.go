// Package carteira reconciles a personal investment portfolio.
//
// The engine reads an immutable transaction ledger and an instrument
// registry from a snapshot store, reconstructs held positions at any
// cutoff date, merges market prices across a priority-ordered chain of
// quote providers, and attributes dividend and distribution events to
// the position held on each record date.
//
// Provider failures never abort a run: each instrument degrades
// independently, down to a sentinel price when no source resolves.
package carteira
