package lpengine

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// errInfeasible reports minimum capacities that cannot fit the community.
var errInfeasible = errors.New("minimum new capacity exceeds community demand")

// sizingProblem is the investment LP over new PV power p and new storage
// capacity e of every meter:
//
//	minimise  Σ cp·p + ce·e
//	s.t.      pMin <= p <= pMax, eMin <= e <= eMax
//	          Σ gen·p <= headroom
//
// where gen is the weighted energy one kW of PV yields over the horizon.
type sizingProblem struct {
	cp, ce     []float64
	pMin, pMax []float64
	eMin, eMax []float64
	gen        []float64
	headroom   float64
}

func (s sizingProblem) n() int { return len(s.cp) }

// shifted returns the box width of each variable once moved to y = x - min.
func (s sizingProblem) shifted() (c, ub []float64, room float64) {
	m := s.n()
	c = make([]float64, 2*m)
	ub = make([]float64, 2*m)
	copy(c, s.cp)
	copy(c[m:], s.ce)
	for i := 0; i < m; i++ {
		ub[i] = math.Max(0, s.pMax[i]-s.pMin[i])
		ub[m+i] = math.Max(0, s.eMax[i]-s.eMin[i])
	}
	room = s.headroom - floats.Dot(s.gen, s.pMin)
	return c, ub, room
}

func (s sizingProblem) feasible() bool {
	_, _, room := s.shifted()
	return room >= -1e-9
}

// solveSimplex solves the shifted problem with gonum's simplex. The
// standard form adds one slack per upper bound and one for the headroom
// row, which also gives the initial basis.
func (s sizingProblem) solveSimplex(tol float64) (p, e []float64, err error) {
	if !s.feasible() {
		return nil, nil, errInfeasible
	}
	c, ub, room := s.shifted()
	nv := len(c)
	m := s.n()

	rows, cols := nv+1, 2*nv+1
	a := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	for j := 0; j < nv; j++ {
		a.Set(j, j, 1)
		a.Set(j, nv+j, 1)
		b[j] = ub[j]
	}
	for i := 0; i < m; i++ {
		a.Set(nv, i, s.gen[i])
	}
	a.Set(nv, 2*nv, 1)
	b[nv] = math.Max(0, room)

	cStd := make([]float64, cols)
	copy(cStd, c)
	basic := make([]int, rows)
	for i := range basic {
		basic[i] = nv + i
	}

	_, sol, err := lp.Simplex(cStd, a, b, tol, basic)
	if err != nil {
		return nil, nil, err
	}
	y := make([]float64, nv)
	for j := range y {
		y[j] = clamp(sol[j], 0, ub[j])
	}
	return s.unshift(y)
}

// solve prefers the simplex and falls back to the greedy solution when the
// simplex reports a numerical failure.
func (s sizingProblem) solve(tol float64) (p, e []float64, err error) {
	if p, e, err = s.solveSimplex(tol); err == nil {
		return p, e, nil
	}
	if errors.Is(err, errInfeasible) {
		return nil, nil, err
	}
	return s.solveGreedy()
}

// objective evaluates the problem at (p, e).
func (s sizingProblem) objective(p, e []float64) float64 {
	return floats.Dot(s.cp, p) + floats.Dot(s.ce, e)
}

// solveGreedy solves the same problem exactly by filling the headroom with
// the PV of highest value per unit of generation; storage is independent.
func (s sizingProblem) solveGreedy() (p, e []float64, err error) {
	if !s.feasible() {
		return nil, nil, errInfeasible
	}
	c, ub, room := s.shifted()
	m := s.n()
	y := make([]float64, len(c))
	for i := 0; i < m; i++ {
		if c[m+i] < 0 {
			y[m+i] = ub[m+i]
		}
	}
	order := make([]int, 0, m)
	for i := 0; i < m; i++ {
		if c[i] >= 0 {
			continue
		}
		if s.gen[i] <= 0 {
			y[i] = ub[i]
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return -c[order[a]]/s.gen[order[a]] > -c[order[b]]/s.gen[order[b]]
	})
	left := math.Max(0, room)
	for _, i := range order {
		take := math.Min(ub[i], left/s.gen[i])
		y[i] = take
		left -= take * s.gen[i]
		if left <= 0 {
			break
		}
	}
	return s.unshift(y)
}

func (s sizingProblem) unshift(y []float64) (p, e []float64, err error) {
	m := s.n()
	p = make([]float64, m)
	e = make([]float64, m)
	for i := 0; i < m; i++ {
		p[i] = s.pMin[i] + y[i]
		e[i] = s.eMin[i] + y[m+i]
	}
	return p, e, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
