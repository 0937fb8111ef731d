// Package qc implements the quality-control filter: it turns a raw,
// irregularly-sampled, fault-prone discharge series into a dense series
// indexed on a regular time grid.
//
// The filter works in five passes:
//
//  1. Reject samples with an unaccepted qualifier, a missing value, or a
//     value outside the configured plausibility bounds.
//  2. Deduplicate by timestamp — the later-arriving sample wins, since the
//     source re-delivers revised readings.
//  3. Snap each accepted timestamp to the nearest grid point; when two
//     distinct samples land on the same grid point the one closer to it
//     wins, with ties keeping the first.
//  4. Build the full grid from the first to the last accepted grid point and
//     fill gaps of up to MaxGapToFill points by linear interpolation.
//     Longer gaps stay as holes in the output.
//  5. Emit the result ordered by timestamp.
//
// Per-sample rejection is routine filtering, not an error; Clean fails only
// on an invalid Config.
package qc
