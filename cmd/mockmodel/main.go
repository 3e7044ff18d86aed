// Command mockmodel serves fake /transcribe and /diarize endpoints for local
// runs of the worker. Segment timings are derived from the uploaded WAV's
// duration.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/skypro1111/transcript-worker/internal/audio"
	"github.com/skypro1111/transcript-worker/internal/transcript"
	"github.com/skypro1111/transcript-worker/internal/transcription"
)

type mockModel struct {
	segment  float64 // seconds per transcript segment
	turn     float64 // seconds per speaker turn
	speakers int
	delay    time.Duration
	logger   *slog.Logger
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	segment := flag.Float64("segment", 20, "Seconds per transcript segment")
	turn := flag.Float64("turn", 30, "Seconds per speaker turn")
	speakers := flag.Int("speakers", 2, "Number of alternating speakers")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := &mockModel{segment: *segment, turn: *turn, speakers: *speakers, delay: *delay, logger: logger}

	logger.Info("Mock model server starting",
		slog.String("address", *addr),
		slog.String("transcribe", "POST /transcribe"),
		slog.String("diarize", "POST /diarize"),
	)

	if err := http.ListenAndServe(*addr, m.routes()); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func (m *mockModel) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", m.handleTranscribe)
	mux.HandleFunc("/diarize", m.handleDiarize)
	return mux
}

// readUpload returns the request id and the duration of the uploaded WAV
func (m *mockModel) readUpload(w http.ResponseWriter, r *http.Request) (string, float64, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", 0, false
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return "", 0, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return "", 0, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return "", 0, false
	}

	info, err := audio.ProbeWAV(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid WAV: %v", err), http.StatusUnprocessableEntity)
		return "", 0, false
	}

	requestID := r.FormValue("request_id")
	m.logger.Info("Request received",
		slog.String("path", r.URL.Path),
		slog.String("request_id", requestID),
		slog.String("filename", header.Filename),
		slog.Int("bytes", len(data)),
		slog.Float64("duration", info.Duration),
		slog.String("language", r.FormValue("language")),
		slog.String("model", r.FormValue("model")),
	)

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return requestID, info.Duration, true
}

func (m *mockModel) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	requestID, duration, ok := m.readUpload(w, r)
	if !ok {
		return
	}

	resp := transcription.TranscriptionResponse{
		RequestID: requestID,
		Language:  r.FormValue("language"),
		Duration:  duration,
		Segments:  []transcript.Segment{},
	}
	for i, start := range steps(duration, m.segment) {
		end := math.Min(start+m.segment, duration)
		text := fmt.Sprintf("segment %d", i+1)
		resp.Segments = append(resp.Segments, transcript.Segment{Start: start, End: end, Text: text})
		if resp.Text != "" {
			resp.Text += " "
		}
		resp.Text += text
	}

	writeJSON(w, resp)
}

func (m *mockModel) handleDiarize(w http.ResponseWriter, r *http.Request) {
	requestID, duration, ok := m.readUpload(w, r)
	if !ok {
		return
	}

	speakers := m.speakers
	if speakers < 1 {
		speakers = 1
	}
	resp := transcription.DiarizationResponse{RequestID: requestID, Segments: []transcript.SpeakerSpan{}}
	for i, start := range steps(duration, m.turn) {
		resp.Segments = append(resp.Segments, transcript.SpeakerSpan{
			Start:   start,
			End:     math.Min(start+m.turn, duration),
			Speaker: fmt.Sprintf("#%d", i%speakers+1),
		})
	}

	writeJSON(w, resp)
}

// steps returns the start times of consecutive windows of width covering duration
func steps(duration, width float64) []float64 {
	if width <= 0 || duration <= 0 {
		return nil
	}
	var starts []float64
	for t := 0.0; t < duration; t += width {
		starts = append(starts, t)
	}
	return starts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
