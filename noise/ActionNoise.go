// Package noise implements action-noise processes used to perturb
// deterministic policies during exploration. All processes sample in
// the normalized action range; the rollout collector adds the sample
// to the scaled action and re-clips to [-1, 1].
package noise

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ActionNoise is a resettable noise process. Reset is called at every
// episode boundary so that temporally correlated processes restart
// from their initial state.
type ActionNoise interface {
	Sample() *mat.VecDense
	Reset()
}

// Normal is uncorrelated Gaussian action noise with fixed per-dimension
// mean and standard deviation
type Normal struct {
	dist []distuv.Normal
}

// NewNormal creates Gaussian action noise with mean mu and standard
// deviation sigma in each action dimension
func NewNormal(mu, sigma []float64, seed uint64) *Normal {
	if len(mu) != len(sigma) {
		panic("newNormal: mu and sigma must have equal lengths")
	}

	src := rand.NewSource(seed)
	dist := make([]distuv.Normal, len(mu))
	for i := range dist {
		dist[i] = distuv.Normal{Mu: mu[i], Sigma: sigma[i], Src: src}
	}
	return &Normal{dist: dist}
}

// Sample draws one noise vector
func (n *Normal) Sample() *mat.VecDense {
	sample := mat.NewVecDense(len(n.dist), nil)
	for i := range n.dist {
		sample.SetVec(i, n.dist[i].Rand())
	}
	return sample
}

// Reset is a no-op: Gaussian noise is memoryless
func (n *Normal) Reset() {}

// OrnsteinUhlenbeck is temporally correlated noise that drifts toward
// mu with rate theta. It is the classic exploration process for
// deterministic policy gradient agents.
type OrnsteinUhlenbeck struct {
	mu    []float64
	sigma []float64
	theta float64
	dt    float64

	initial []float64
	prev    []float64
	normal  distuv.Normal
}

// NewOrnsteinUhlenbeck creates an Ornstein-Uhlenbeck process. The
// initial parameter may be nil, in which case the process starts (and
// restarts on Reset) from zero.
func NewOrnsteinUhlenbeck(mu, sigma []float64, theta, dt float64,
	initial []float64, seed uint64) *OrnsteinUhlenbeck {
	if len(mu) != len(sigma) {
		panic("newOrnsteinUhlenbeck: mu and sigma must have equal lengths")
	}
	if initial != nil && len(initial) != len(mu) {
		panic("newOrnsteinUhlenbeck: initial state has wrong length")
	}

	ou := &OrnsteinUhlenbeck{
		mu:      mu,
		sigma:   sigma,
		theta:   theta,
		dt:      dt,
		initial: initial,
		normal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}
	ou.Reset()
	return ou
}

// Sample advances the process one step and returns its state
func (o *OrnsteinUhlenbeck) Sample() *mat.VecDense {
	next := make([]float64, len(o.mu))
	for i := range next {
		next[i] = o.prev[i] +
			o.theta*(o.mu[i]-o.prev[i])*o.dt +
			o.sigma[i]*math.Sqrt(o.dt)*o.normal.Rand()
	}
	o.prev = next
	return mat.NewVecDense(len(next), next)
}

// Reset returns the process to its initial state
func (o *OrnsteinUhlenbeck) Reset() {
	o.prev = make([]float64, len(o.mu))
	if o.initial != nil {
		copy(o.prev, o.initial)
	}
}
