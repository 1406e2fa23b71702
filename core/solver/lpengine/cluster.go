package lpengine

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// clustering assigns every day of the horizon to a representative day.
// Clusters are numbered by the first day they contain.
type clustering struct {
	labels  []int
	weights []int
}

func (c clustering) k() int { return len(c.weights) }

// identity keeps every day as its own cluster.
func identity(nrDays int) clustering {
	c := clustering{labels: make([]int, nrDays), weights: make([]int, nrDays)}
	for d := range c.labels {
		c.labels[d] = d
		c.weights[d] = 1
	}
	return c
}

// kmeans groups the day feature vectors into k clusters. Initial centroids
// are spread evenly over the horizon so results are deterministic.
func kmeans(features [][]float64, k, maxIter int) clustering {
	n := len(features)
	if k >= n || k <= 0 {
		return identity(n)
	}
	dim := len(features[0])
	centroids := make([][]float64, k)
	for j := range centroids {
		centroids[j] = append([]float64(nil), features[j*n/k]...)
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for d, f := range features {
			best, bestDist := 0, math.Inf(1)
			for j, c := range centroids {
				if dist := floats.Distance(f, c, 2); dist < bestDist {
					best, bestDist = j, dist
				}
			}
			if labels[d] != best {
				labels[d] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for j := range sums {
			sums[j] = make([]float64, dim)
		}
		for d, f := range features {
			floats.Add(sums[labels[d]], f)
			counts[labels[d]]++
		}
		for j := range centroids {
			if counts[j] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[j]), sums[j])
			centroids[j] = sums[j]
		}
	}
	return renumber(labels)
}

// renumber maps labels to 0..k-1 in order of first occurrence and drops
// empty clusters.
func renumber(labels []int) clustering {
	ids := make(map[int]int)
	c := clustering{labels: make([]int, len(labels))}
	for d, l := range labels {
		id, ok := ids[l]
		if !ok {
			id = len(ids)
			ids[l] = id
			c.weights = append(c.weights, 0)
		}
		c.labels[d] = id
		c.weights[id]++
	}
	return c
}

// representative averages a horizon series into one day per cluster,
// concatenated in cluster order.
func (c clustering) representative(series []float64, perDay int) []float64 {
	out := make([]float64, c.k()*perDay)
	for d, l := range c.labels {
		floats.Add(out[l*perDay:(l+1)*perDay], series[d*perDay:(d+1)*perDay])
	}
	for l, w := range c.weights {
		floats.Scale(1/float64(w), out[l*perDay:(l+1)*perDay])
	}
	return out
}
