package analytics

import "math"

// Impute replaces missing values (NaN) in every column with the mean of the
// column's present values. A column with no present values is filled with 0.
// The input matrix is not modified.
func Impute(data [][]float64) [][]float64 {
	out := cloneMatrix(data)
	if len(out) == 0 {
		return out
	}
	for j := range out[0] {
		var sum float64
		var n int
		for i := range out {
			if v := out[i][j]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		for i := range out {
			if math.IsNaN(out[i][j]) {
				out[i][j] = mean
			}
		}
	}
	return out
}

// Standardize centers every column on zero and scales it by its population
// standard deviation. Zero-variance columns become all zeros.
// The input matrix is not modified.
func Standardize(data [][]float64) [][]float64 {
	out := cloneMatrix(data)
	if len(out) == 0 {
		return out
	}
	n := float64(len(out))
	for j := range out[0] {
		var mean float64
		for i := range out {
			mean += out[i][j]
		}
		mean /= n

		var variance float64
		for i := range out {
			d := out[i][j] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / n)

		for i := range out {
			if std == 0 {
				out[i][j] = 0
				continue
			}
			out[i][j] = (out[i][j] - mean) / std
		}
	}
	return out
}

func cloneMatrix(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
