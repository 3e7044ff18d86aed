// Package transcript folds raw model output into fixed-width interval
// buckets and renders the result as a CSV artifact.
//
// Assembly is deterministic: the same segments, speaker spans, interval and
// duration always produce the same rows in the same order, so re-running a
// job yields a byte-identical artifact.
package transcript
