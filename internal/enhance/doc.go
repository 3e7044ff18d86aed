// Package enhance implements speech enhancement for recordings: spectral
// dereverberation, adaptive noise reduction, peak normalization and a
// Butterworth band-pass, plus the chunk preprocessor that drives VAD and
// enhancement over a whole recording.
package enhance
