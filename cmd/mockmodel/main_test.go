package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/skypro1111/transcript-worker/internal/audio"
	"github.com/skypro1111/transcript-worker/internal/transcription"
)

func newMockServer(t *testing.T) (*httptest.Server, *transcription.Client) {
	t.Helper()
	m := &mockModel{segment: 20, turn: 30, speakers: 2, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	srv := httptest.NewServer(m.routes())
	t.Cleanup(srv.Close)

	client, err := transcription.NewClient(transcription.Config{
		TranscribeEndpoint: srv.URL + "/transcribe",
		DiarizeEndpoint:    srv.URL + "/diarize",
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return srv, client
}

func silentWAV(t *testing.T, seconds int) []byte {
	t.Helper()
	wav, err := audio.EncodeWAV(audio.Signal{Samples: make([]float64, seconds*8000), SampleRate: 8000})
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}
	return wav
}

func TestMockTranscribe(t *testing.T) {
	_, client := newMockServer(t)

	segments, err := client.Transcribe(context.Background(), silentWAV(t, 65))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("Expected 4 segments, got %d", len(segments))
	}
	if segments[3].Start != 60 || segments[3].End != 65 {
		t.Errorf("Expected last segment [60, 65], got [%f, %f]", segments[3].Start, segments[3].End)
	}
	if segments[0].Text != "segment 1" {
		t.Errorf("Expected 'segment 1', got '%s'", segments[0].Text)
	}
}

func TestMockDiarize(t *testing.T) {
	_, client := newMockServer(t)

	spans, err := client.Diarize(context.Background(), silentWAV(t, 65))
	if err != nil {
		t.Fatalf("Diarize failed: %v", err)
	}
	want := []string{"#1", "#2", "#1"}
	if len(spans) != len(want) {
		t.Fatalf("Expected %d speaker turns, got %d", len(want), len(spans))
	}
	for i, speaker := range want {
		if spans[i].Speaker != speaker {
			t.Errorf("Turn %d: expected speaker %s, got %s", i, speaker, spans[i].Speaker)
		}
	}
}

func TestMockRejectsInvalidAudio(t *testing.T) {
	_, client := newMockServer(t)

	if _, err := client.Transcribe(context.Background(), []byte("not a wav")); err == nil {
		t.Errorf("Expected error for invalid audio")
	}
}

func TestSteps(t *testing.T) {
	tests := []struct {
		duration, width float64
		want            int
	}{
		{65, 20, 4},
		{60, 20, 3},
		{0, 20, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := len(steps(tt.duration, tt.width)); got != tt.want {
			t.Errorf("steps(%v, %v): expected %d windows, got %d", tt.duration, tt.width, tt.want, got)
		}
	}
}
