// Package actionutils implements rescaling of actions between an
// environment's native bounds and the normalized symmetric range
// [-1, 1] that policies operate in.
package actionutils

import "gonum.org/v1/gonum/mat"

// Scale affinely maps an action from [low, high] to [-1, 1],
// element-wise. Bounds must satisfy high > low in every dimension;
// degenerate bounds divide by zero and are the caller's responsibility
// to avoid.
func Scale(action, low, high mat.Vector) *mat.VecDense {
	scaled := mat.NewVecDense(action.Len(), nil)
	for i := 0; i < action.Len(); i++ {
		l, h := low.AtVec(i), high.AtVec(i)
		scaled.SetVec(i, 2.0*(action.AtVec(i)-l)/(h-l)-1.0)
	}
	return scaled
}

// Unscale affinely maps a normalized action from [-1, 1] back to
// [low, high], element-wise. It is the exact inverse of Scale up to
// floating-point rounding.
func Unscale(scaled, low, high mat.Vector) *mat.VecDense {
	action := mat.NewVecDense(scaled.Len(), nil)
	for i := 0; i < scaled.Len(); i++ {
		l, h := low.AtVec(i), high.AtVec(i)
		action.SetVec(i, l+0.5*(scaled.AtVec(i)+1.0)*(h-l))
	}
	return action
}
