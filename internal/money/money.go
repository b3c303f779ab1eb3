package money

import "github.com/shopspring/decimal"

// Round2 rounds to 2 decimal places, half away from zero on the 3rd decimal,
// going through decimal to avoid binary floating-point artifacts like
// 0.145 rounding down.
func Round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// Mul multiplies two currency amounts exactly and returns the float result.
// Used where quantity-times-price must not drift within currency precision.
func Mul(a, b float64) float64 {
	out, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Float64()
	return out
}

// Sum adds amounts exactly and rounds the total to 2 decimals.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	out, _ := total.Round(2).Float64()
	return out
}
