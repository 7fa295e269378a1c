// Current spectrum estimation using Welch's method
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sim

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Spectrum computes one-sided power spectral densities with Welch's
// method, a Kaiser window and 50% overlap.
type Spectrum struct {
	nfft   int
	fft    *fourier.FFT
	window []float64
	scale  float64
}

// NewSpectrum returns an estimator with FFT length nfft.
func NewSpectrum(nfft int) *Spectrum {
	window := kaiserWindow(nfft, 6.0)
	return &Spectrum{
		nfft:   nfft,
		fft:    fourier.NewFFT(nfft),
		window: window,
		scale:  1 / floats.Dot(window, window),
	}
}

// PSD returns the frequency bins and the power spectral density of x
// sampled at fs. It returns nil if x is shorter than the FFT length.
func (s *Spectrum) PSD(x []float64, fs float64) (freqs, psd []float64) {
	step := s.nfft / 2
	if len(x) < s.nfft {
		return nil, nil
	}

	bins := s.nfft/2 + 1
	psd = make([]float64, bins)
	seg := make([]float64, s.nfft)

	windows := 0
	for start := 0; start+s.nfft <= len(x); start += step {
		copy(seg, x[start:start+s.nfft])
		mean := floats.Sum(seg) / float64(s.nfft)
		for i := range seg {
			seg[i] = s.window[i] * (seg[i] - mean)
		}

		coeffs := s.fft.Coefficients(nil, seg)
		for i := 0; i < bins; i++ {
			psd[i] += real(coeffs[i])*real(coeffs[i]) + imag(coeffs[i])*imag(coeffs[i])
		}
		windows++
	}

	freqs = make([]float64, bins)
	df := fs / float64(s.nfft)
	for i := range psd {
		psd[i] *= s.scale / (fs * float64(windows))
		if i > 0 && i < bins-1 {
			psd[i] *= 2
		}
		freqs[i] = float64(i) * df
	}
	return freqs, psd
}

// peakFreq returns the frequency of the largest PSD bin above DC.
func peakFreq(freqs, psd []float64) float64 {
	if len(psd) < 2 {
		return 0
	}
	return freqs[1+floats.MaxIdx(psd[1:])]
}

// kaiserWindow generates a Kaiser window of length n with shape beta.
func kaiserWindow(n int, beta float64) []float64 {
	if n == 1 {
		return []float64{1}
	}
	window := make([]float64, n)
	den := besselI0(beta)
	for i := range window {
		x := 2*float64(i)/float64(n-1) - 1
		window[i] = besselI0(beta*math.Sqrt(1-x*x)) / den
	}
	return window
}

// besselI0 is the modified Bessel function of the first kind, order 0
// (Abramowitz and Stegun 9.8.1, 9.8.2).
func besselI0(x float64) float64 {
	ax := math.Abs(x)
	if ax < 3.75 {
		y := x / 3.75
		y *= y
		return 1 + y*(3.5156229+y*(3.0899424+y*(1.2067492+
			y*(0.2659732+y*(0.0360768+y*0.0045813)))))
	}
	y := 3.75 / ax
	return math.Exp(ax) / math.Sqrt(ax) * (0.39894228 + y*(0.01328592+
		y*(0.00225319+y*(-0.00157565+y*(0.00916281+y*(-0.02057706+
			y*(0.02635537+y*(-0.01647633+y*0.00392377))))))))
}

// fftLen picks a power of two FFT length for n samples, at most 1024.
func fftLen(n int) int {
	p := 64
	for p*2 <= n && p < 1024 {
		p *= 2
	}
	return p
}
