// Package tasks matches playlists across music services and commits reviewed transfers.
//
// # Matching
//
// Every source track climbs the same ladder and stops at the first rung that produces a destination:
//
//  1. Mapping cache: a pairing learned from an earlier commit (tracks with an id only).
//  2. Direct search: the [Pipeline] registered for the (source, destination) pair builds queries from
//     most to least specific; the first non-empty result wins.
//  3. AI fallback: [AIResolver] asks a completion model and resolves its answer on the destination.
//
// A track that falls off the ladder is unmatched; that is an outcome, not an error. Only an
// authorization failure or a canceled context aborts a proposal. Tracks are matched concurrently,
// bounded by the configured concurrency, and results keep playlist order.
//
// # Transfers
//
// [Engine.Propose] returns mappings for review and never writes anything. [Engine.Commit] takes the
// reviewed mappings, learns them, creates the destination playlist and records the transfer.
//
// # Progress Reporting
//
// Both operations accept an optional channel of [ProgressUpdate]. Sends never block; updates are
// dropped when the channel is full.
package tasks
