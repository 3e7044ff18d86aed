// Package audio handles decoding, resampling, chunking, and PCM/WAV encoding of
// recordings. Everything downstream operates on Signal: a mono sequence of
// float amplitudes at one of the rates the voice activity detector accepts.
package audio
