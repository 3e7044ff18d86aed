package vad

import (
	"fmt"
	"math"
)

// FrameClassifier decides whether a single PCM frame contains speech.
type FrameClassifier interface {
	IsSpeech(frame []int16, sampleRate int) (bool, error)
}

// energyThresholds are minimum frame RMS values (PCM16 units) per aggressiveness.
var energyThresholds = [4]float64{250, 400, 650, 1000}

// zeroCrossingLimits are maximum zero-crossing rates per aggressiveness;
// broadband hiss crosses zero on roughly every other sample.
var zeroCrossingLimits = [4]float64{1.0, 0.55, 0.45, 0.35}

// EnergyClassifier is an energy and zero-crossing frame classifier.
// Higher aggressiveness rejects more frames as non-speech.
type EnergyClassifier struct {
	aggressiveness int
}

// NewEnergyClassifier creates a classifier for aggressiveness 0 (least) to 3 (most).
func NewEnergyClassifier(aggressiveness int) (*EnergyClassifier, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("aggressiveness must be between 0 and 3, got %d", aggressiveness)
	}
	return &EnergyClassifier{aggressiveness: aggressiveness}, nil
}

// IsSpeech implements FrameClassifier
func (c *EnergyClassifier) IsSpeech(frame []int16, sampleRate int) (bool, error) {
	if len(frame) == 0 {
		return false, fmt.Errorf("empty frame")
	}

	var energy float64
	crossings := 0
	for i, sample := range frame {
		energy += float64(sample) * float64(sample)
		if i > 0 && (sample >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	rms := math.Sqrt(energy / float64(len(frame)))
	zcr := float64(crossings) / float64(len(frame))

	return rms >= energyThresholds[c.aggressiveness] && zcr <= zeroCrossingLimits[c.aggressiveness], nil
}
