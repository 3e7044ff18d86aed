// Package vad provides voice activity segmentation. Fixed-duration frames are
// classified as voiced or unvoiced, voiced frames separated by short gaps are
// stitched into spans, and each span is padded on both sides.
package vad
