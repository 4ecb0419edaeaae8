package carbon

import "math"

// ValuationConstant returns the multiplier that converts a change in carbon
// (Mg) between basYear and altYear into net present value.
//
// With n = altYear - basYear and ratio = 1 / ((1 + d/100)(1 + r/100)), the
// constant is price/n times the geometric sum of ratio^k for k in [0, n).
// At ratio == 1 the sum is n. Callers must ensure altYear > basYear.
func ValuationConstant(basYear, altYear int, discountRate, rateChange, price float64) float64 {
	n := float64(altYear - basYear)
	ratio := 1 / ((1 + discountRate/100) * (1 + rateChange/100))
	c := price / n
	if ratio == 1 {
		return c * n
	}
	return c * (1 - math.Pow(ratio, n)) / (1 - ratio)
}
