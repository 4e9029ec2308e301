package search

import "math"

const (
	k1 = 1.2
	b  = 0.75
)

// bm25IDF is ln((N - df) / (df + 0.5) + 1).
func bm25IDF(docCount, docFreq int64) float32 {
	numerator := float64(docCount) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return float32(math.Log(numerator/denominator + 1))
}

// bm25TFNorm saturates term frequency and normalises by document length.
func bm25TFNorm(termFreq, docLength float32, avgDocLength float64) float32 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := float64(docLength) / avgDocLength
	denominator := float64(termFreq) + k1*(1-b+b*lengthRatio)
	return float32(float64(termFreq) * (k1 + 1) / denominator)
}
