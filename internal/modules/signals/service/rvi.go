package service

// rvi is a streaming Relative Vigor Index. Both the close-open numerator and
// the high-low denominator are smoothed with the fixed 4-bar 1-2-2-1 kernel
// before the rolling division; the kernel is load-bearing for numeric parity
// with recorded history and must not change.
//
// While fewer than 4 bars exist the kernel is truncated to the available
// terms (weights renormalized), so the index starts producing values after
// `period` bars.
type rvi struct {
	period int

	co []float64 // close-open history, newest last, capped at 4
	hl []float64 // high-low history

	nums []float64 // smoothed numerator window, capped at period
	dens []float64
}

func newRVI(period int) *rvi {
	return &rvi{
		period: period,
		co:     make([]float64, 0, 4),
		hl:     make([]float64, 0, 4),
		nums:   make([]float64, 0, period),
		dens:   make([]float64, 0, period),
	}
}

// swma applies the 1-2-2-1 weighted average to the last up-to-4 values,
// newest last. With a full window this is (a + 2b + 2c + d) / 6.
func swma(vals []float64) float64 {
	weights := [4]float64{1, 2, 2, 1}
	n := len(vals)
	if n > 4 {
		vals = vals[n-4:]
		n = 4
	}

	// weights[3] belongs to the newest value
	sum, wsum := 0.0, 0.0
	for i := 0; i < n; i++ {
		w := weights[4-n+i]
		sum += w * vals[i]
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

func (r *rvi) update(open, high, low, closeP float64) {
	r.co = append(r.co, closeP-open)
	if len(r.co) > 4 {
		r.co = r.co[1:]
	}
	r.hl = append(r.hl, high-low)
	if len(r.hl) > 4 {
		r.hl = r.hl[1:]
	}

	r.nums = append(r.nums, swma(r.co))
	if len(r.nums) > r.period {
		r.nums = r.nums[1:]
	}
	r.dens = append(r.dens, swma(r.hl))
	if len(r.dens) > r.period {
		r.dens = r.dens[1:]
	}
}

func (r *rvi) ready() bool {
	return len(r.nums) >= r.period
}

// value is the rolling sum ratio; a flat market (zero denominator) reads 0.
func (r *rvi) value() float64 {
	var num, den float64
	for _, v := range r.nums {
		num += v
	}
	for _, v := range r.dens {
		den += v
	}
	if den == 0 {
		return 0
	}
	return num / den
}
