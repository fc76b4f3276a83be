package pipeline

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"imagelab/internal/models"
)

// Metrics summarises how faithfully each inverse transform reproduced the
// intensity field, plus a few descriptive numbers for display
type Metrics struct {
	// CosineRMSE and CosineMaxError compare IDCT(DCT(f)) with f
	CosineRMSE     float64
	CosineMaxError float64

	// FrequencyRMSE and FrequencyMaxError compare Re(IFFT(FFT(f))) with f
	FrequencyRMSE     float64
	FrequencyMaxError float64

	// MaxImaginary is the largest |Im| left by the frequency round trip
	MaxImaginary float64

	// MeanIntensity is the mean of the intensity field on the 0..255 scale
	MeanIntensity float64

	// DCEnergyShare is the fraction of cosine-domain energy held by the DC
	// coefficient. Values close to 1 mean a nearly flat image.
	DCEnergyShare float64

	// Duration is the wall time of the whole run
	Duration time.Duration
}

// calculateMetrics fills every field except Duration
func calculateMetrics(intensity, cosine, cosineInverse *models.Field, frequencyInverse *models.ComplexField) Metrics {
	var m Metrics
	n := len(intensity.Data)
	if n == 0 {
		return m
	}

	m.CosineRMSE = calculateRMSE(intensity.Data, cosineInverse.Data)
	m.CosineMaxError = floats.Distance(intensity.Data, cosineInverse.Data, math.Inf(1))

	realPart := frequencyInverse.Real().Data
	m.FrequencyRMSE = calculateRMSE(intensity.Data, realPart)
	m.FrequencyMaxError = floats.Distance(intensity.Data, realPart, math.Inf(1))

	imagPart := frequencyInverse.Imag().Data
	m.MaxImaginary = floats.Norm(imagPart, math.Inf(1))

	m.MeanIntensity = stat.Mean(intensity.Data, nil)

	total := floats.Dot(cosine.Data, cosine.Data)
	if total > 0 {
		m.DCEnergyShare = cosine.Data[0] * cosine.Data[0] / total
	}

	return m
}

// calculateRMSE computes the root mean square error between two equal-length series
func calculateRMSE(original, reconstructed []float64) float64 {
	n := len(original)
	if n != len(reconstructed) || n == 0 {
		return 0
	}
	return floats.Distance(original, reconstructed, 2) / math.Sqrt(float64(n))
}
