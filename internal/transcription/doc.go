// Package transcription implements the HTTP client for the external
// speech-to-text and diarization model service. Audio is uploaded as a
// multipart WAV file together with the language and model to use; calls are
// bounded by a concurrency semaphore and are never retried.
package transcription
