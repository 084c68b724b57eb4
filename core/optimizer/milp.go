package optimizer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// intTol decides when a relaxed binary counts as integral.
const intTol = 1e-6

// problem is the MILP in general form: minimize c·x subject to
// G·x ≤ h, A·x = b, with the full-charge variables binary.
//
// Variable layout, T steps (SoC_0 is the fixed initial value and not
// a variable):
//
//	[0,T)    grid import G_t
//	[T,2T)   solar charge Chs_t
//	[2T,3T)  grid charge Chg_t
//	[3T,4T)  discharge Dch_t
//	[4T,5T)  export E_t
//	[5T,6T)  surplus solar Surp_t
//	[6T,7T)  full-charge indicator Full_t
//	[7T,8T)  SoC_{t+1}
type problem struct {
	T int
	n int
	c []float64
	g *mat.Dense
	h []float64
	a *mat.Dense
	b []float64
}

func (p *problem) iG(t int) int    { return t }
func (p *problem) iChs(t int) int  { return p.T + t }
func (p *problem) iChg(t int) int  { return 2*p.T + t }
func (p *problem) iDch(t int) int  { return 3*p.T + t }
func (p *problem) iE(t int) int    { return 4*p.T + t }
func (p *problem) iSurp(t int) int { return 5*p.T + t }
func (p *problem) iFull(t int) int { return 6*p.T + t }

// iSoC indexes the state of charge after step t.
func (p *problem) iSoC(t int) int { return 7*p.T + t }

func newProblem(in Input, cfg Config) *problem {
	T := len(in.Consumption)
	dt := float64(in.StepMinutes) / 60
	dev := in.Device
	eff := dev.Efficiency
	bigM := cfg.BigMFactor * dev.CapacityKWh

	p := &problem{T: T, n: 8 * T}
	p.c = make([]float64, p.n)

	// Objective: grid energy cost minus export revenue, minus the
	// residual value of the final state of charge.
	residual := residualPrice(in.Price, cfg.ResidualValuation)
	for t := 0; t < T; t++ {
		p.c[p.iG(t)] = in.Price[t] * dt
		p.c[p.iE(t)] = -dev.FeedInTariffCt * dt
	}
	p.c[p.iSoC(T-1)] -= residual

	// Equalities: power balance and SoC recursion.
	p.a = mat.NewDense(2*T, p.n, nil)
	p.b = make([]float64, 2*T)
	for t := 0; t < T; t++ {
		// solar + G + Dch·eff = consumption + Chs + Chg + E
		p.a.Set(t, p.iG(t), 1)
		p.a.Set(t, p.iDch(t), eff)
		p.a.Set(t, p.iChs(t), -1)
		p.a.Set(t, p.iChg(t), -1)
		p.a.Set(t, p.iE(t), -1)
		p.b[t] = in.Consumption[t] - in.Solar[t]

		// SoC_{t+1} = SoC_t + (Chs+Chg)·eff·dt − Dch·dt
		r := T + t
		p.a.Set(r, p.iSoC(t), 1)
		if t > 0 {
			p.a.Set(r, p.iSoC(t-1), -1)
		}
		p.a.Set(r, p.iChs(t), -eff*dt)
		p.a.Set(r, p.iChg(t), -eff*dt)
		p.a.Set(r, p.iDch(t), dt)
		if t == 0 {
			p.b[r] = in.InitialSoCKWh
		}
	}

	// Inequalities.
	rows := 11*T + p.n
	p.g = mat.NewDense(rows, p.n, nil)
	p.h = make([]float64, rows)
	r := 0
	type term struct {
		idx  int
		coef float64
	}
	row := func(h float64, terms ...term) {
		for _, tm := range terms {
			p.g.Set(r, tm.idx, tm.coef)
		}
		p.h[r] = h
		r++
	}
	for t := 0; t < T; t++ {
		surplus := math.Max(0, in.Solar[t]-in.Consumption[t])
		// SoC window
		row(dev.CapacityKWh, term{p.iSoC(t), 1})
		row(-dev.LowerLimitKWh, term{p.iSoC(t), -1})
		// rate caps
		row(dev.MaxChargeKW, term{p.iChs(t), 1}, term{p.iChg(t), 1})
		row(dev.MaxDischargeKW, term{p.iDch(t), 1})
		// Surp_t ≥ solar−consumption and Surp_t is pinned from above
		// to the solar excess, so solar charge can only come from
		// production that would otherwise go unused.
		row(in.Consumption[t]-in.Solar[t], term{p.iSurp(t), -1})
		row(surplus, term{p.iSurp(t), 1})
		row(0, term{p.iChs(t), 1}, term{p.iSurp(t), -1})
		// grid charge only from imported power
		row(0, term{p.iChg(t), 1}, term{p.iG(t), -1})
		// big-M link: SoC_{t+1} ≥ capacity − (1−Full)·M
		row(bigM-dev.CapacityKWh, term{p.iSoC(t), -1}, term{p.iFull(t), bigM})
		// export only once full: E ≤ Full·M
		row(0, term{p.iE(t), 1}, term{p.iFull(t), -bigM})
		// relaxed binary upper bound
		row(1, term{p.iFull(t), 1})
	}
	for i := 0; i < p.n; i++ {
		row(0, term{i, -1})
	}
	return p
}

func residualPrice(price []float64, mode string) float64 {
	if mode == ValuationMean {
		var sum float64
		for _, v := range price {
			sum += v
		}
		return sum / float64(len(price))
	}
	min := price[0]
	for _, v := range price[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// relax solves the LP relaxation with the given binaries fixed and
// returns the objective and the solution in original variable space.
func (p *problem) relax(fixed map[int]float64) (float64, []float64, error) {
	aRows := 2 * p.T
	a := mat.NewDense(aRows+len(fixed), p.n, nil)
	a.Slice(0, aRows, 0, p.n).(*mat.Dense).Copy(p.a)
	b := make([]float64, aRows, aRows+len(fixed))
	copy(b, p.b)
	for idx, v := range fixed {
		a.Set(len(b), idx, 1)
		b = append(b, v)
	}

	cStd, aStd, bStd := lp.Convert(p.c, p.g, p.h, a, b)
	obj, xStd, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return 0, nil, err
	}
	// Convert splits x into positive and negative parts; recombine.
	x := make([]float64, p.n)
	for i := range x {
		x[i] = xStd[i] - xStd[p.n+i]
	}
	return obj, x, nil
}

type bnbNode struct {
	fixed map[int]float64
}

func (n bnbNode) branch(idx int, v float64) bnbNode {
	child := make(map[int]float64, len(n.fixed)+1)
	for k, val := range n.fixed {
		child[k] = val
	}
	child[idx] = v
	return bnbNode{fixed: child}
}

// branchAndBound explores the full-charge binaries depth-first,
// pruning on the incumbent objective. All leaves are enumerated in
// the worst case, so a proven optimum or infeasibility is always
// reached within the node limit.
func branchAndBound(ctx context.Context, p *problem, maxNodes int) ([]float64, error) {
	best := math.Inf(1)
	var bestX []float64
	stack := []bnbNode{{}}
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dispatch solve canceled: %w", err)
		}
		nodes++
		if maxNodes > 0 && nodes > maxNodes {
			return nil, fmt.Errorf("dispatch solve exceeded %d nodes without a proven optimum", maxNodes)
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		obj, x, err := p.relax(node.fixed)
		if err != nil {
			// Infeasible or unbounded subtree: nothing below it can
			// beat the incumbent.
			continue
		}
		if obj >= best-1e-9 {
			continue
		}

		idx, frac := p.mostFractionalFull(node.fixed, x)
		if idx < 0 {
			best = obj
			bestX = x
			continue
		}
		// Explore the rounding of the relaxed value first.
		preferred := math.Round(frac)
		stack = append(stack, node.branch(idx, 1-preferred))
		stack = append(stack, node.branch(idx, preferred))
	}

	if bestX == nil {
		return nil, ErrInfeasible
	}
	return bestX, nil
}

// mostFractionalFull picks the unfixed full-charge variable furthest
// from integrality, or -1 if the solution is already integral.
func (p *problem) mostFractionalFull(fixed map[int]float64, x []float64) (int, float64) {
	bestIdx := -1
	bestDist := intTol
	bestVal := 0.0
	for t := 0; t < p.T; t++ {
		idx := p.iFull(t)
		if _, ok := fixed[idx]; ok {
			continue
		}
		v := x[idx]
		dist := math.Abs(v - math.Round(v))
		if dist > bestDist {
			bestIdx = idx
			bestDist = dist
			bestVal = v
		}
	}
	return bestIdx, bestVal
}
