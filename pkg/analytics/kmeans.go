package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aretw0/mosaic/pkg/domain"
)

// ErrInvalidK is returned when fewer than one cluster is requested.
var ErrInvalidK = errors.New("number of clusters must be at least 1")

// Default clustering parameters.
const (
	DefaultMaxIter = 300
	DefaultTol     = 1e-4
	DefaultInit    = 10
)

// Row is one observation keyed by feature name.
// An absent key or a NaN value is a missing feature.
type Row map[string]float64

// Options tunes the clustering run. Zero fields take the defaults.
type Options struct {
	// Seed drives k-means++ seeding. The same seed always yields the same labels.
	Seed uint64
	// MaxIter bounds the Lloyd iterations of each restart.
	MaxIter int
	// Tol is the squared centroid shift under which a restart has converged.
	Tol float64
	// Init is the number of restarts. The lowest-inertia run wins.
	Init int
}

func (o Options) withDefaults() Options {
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Tol <= 0 {
		o.Tol = DefaultTol
	}
	if o.Init <= 0 {
		o.Init = DefaultInit
	}
	return o
}

// Result is the outcome of a clustering run.
type Result struct {
	// Labels holds one cluster per row, renumbered by first appearance.
	Labels []int
	// Rows holds the input index of every labelled row, aligned with Labels.
	Rows []int
	// Inertia is the sum of squared distances to the assigned centroids,
	// measured in standardized space.
	Inertia float64
	// Centroids are expressed in standardized space, indexed by label.
	Centroids [][]float64
	// Iterations is the number of Lloyd iterations of the winning restart.
	Iterations int
}

// Cluster imputes, standardizes and partitions rows into k clusters.
func Cluster(rows []Row, features []string, k int, opts Options) (Result, error) {
	return ClusterContext(context.Background(), rows, features, k, opts)
}

// ClusterContext is Cluster with cancellation checked between iterations.
func ClusterContext(ctx context.Context, rows []Row, features []string, k int, opts Options) (Result, error) {
	if k < 1 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(features) == 0 {
		return Result{}, &domain.InsufficientDataError{Reason: "no features requested"}
	}
	opts = opts.withDefaults()

	matrix, kept, present := extract(rows, features)
	if !present {
		return Result{}, &domain.InsufficientDataError{Reason: "no rows with any requested feature"}
	}
	if k > len(kept) {
		return Result{}, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("%d clusters requested for %d rows", k, len(kept)),
		}
	}

	data := Standardize(Impute(matrix))

	var best *run
	for r := 0; r < opts.Init; r++ {
		rng := rand.New(rand.NewPCG(opts.Seed, uint64(r)))
		cur, err := lloyd(ctx, data, seed(data, k, rng), opts)
		if err != nil {
			return Result{}, err
		}
		if best == nil || cur.inertia < best.inertia {
			best = cur
		}
	}

	labels, centroids := relabel(best.labels, best.centroids)
	return Result{
		Labels:     labels,
		Rows:       kept,
		Inertia:    best.inertia,
		Centroids:  centroids,
		Iterations: best.iterations,
	}, nil
}

// extract builds the feature matrix. Every row is kept: a row with all
// features missing is imputed like any other. present reports whether any
// feature value exists at all.
func extract(rows []Row, features []string) (matrix [][]float64, kept []int, present bool) {
	for i, row := range rows {
		vec := make([]float64, len(features))
		for j, f := range features {
			v, ok := row[f]
			if !ok || math.IsNaN(v) {
				vec[j] = math.NaN()
				continue
			}
			vec[j] = v
			present = true
		}
		matrix = append(matrix, vec)
		kept = append(kept, i)
	}
	return matrix, kept, present
}

type run struct {
	labels     []int
	centroids  [][]float64
	inertia    float64
	iterations int
}

// seed picks k initial centroids with k-means++.
func seed(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), data[rng.IntN(n)]...))

	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range data {
			d := math.Inf(1)
			for _, c := range centroids {
				d = math.Min(d, sqDist(p, c))
			}
			dist[i] = d
			total += d
		}

		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 && d > 0 {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), data[next]...))
	}
	return centroids
}

func lloyd(ctx context.Context, data, centroids [][]float64, opts Options) (*run, error) {
	k := len(centroids)
	dims := len(data[0])
	labels := make([]int, len(data))

	iter := 0
	for iter < opts.MaxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter++
		changed := assign(data, centroids, labels)

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range data {
			c := labels[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}

		var shift float64
		for c := range centroids {
			// An empty cluster keeps its previous centroid.
			if counts[c] == 0 {
				continue
			}
			for d := range sums[c] {
				sums[c][d] /= float64(counts[c])
			}
			shift += sqDist(sums[c], centroids[c])
			centroids[c] = sums[c]
		}

		if !changed && iter > 1 || shift <= opts.Tol {
			break
		}
	}

	assign(data, centroids, labels)
	var inertia float64
	for i, p := range data {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return &run{labels: labels, centroids: centroids, inertia: inertia, iterations: iter}, nil
}

// assign moves every point to its nearest centroid, lowest index on ties.
func assign(data, centroids [][]float64, labels []int) bool {
	changed := false
	for i, p := range data {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := sqDist(p, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// relabel renumbers clusters in order of first appearance.
func relabel(labels []int, centroids [][]float64) ([]int, [][]float64) {
	mapping := make(map[int]int, len(centroids))
	out := make([]int, len(labels))
	ordered := make([][]float64, 0, len(centroids))
	for i, l := range labels {
		n, ok := mapping[l]
		if !ok {
			n = len(mapping)
			mapping[l] = n
			ordered = append(ordered, centroids[l])
		}
		out[i] = n
	}
	// Clusters that ended up empty keep their place after the used ones.
	for c := range centroids {
		if _, ok := mapping[c]; !ok {
			mapping[c] = len(mapping)
			ordered = append(ordered, centroids[c])
		}
	}
	return out, ordered
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
