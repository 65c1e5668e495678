package daq

import "math"

// MaxPrescaler is the largest timer clock divider.
const MaxPrescaler = 1024

// Prescalers lists the timer clock dividers in ascending order.
var Prescalers = [...]uint32{1, 2, 4, 8, 16, 64, 256, MaxPrescaler}

// Reach returns the longest period, in seconds, a 32-bit timer counts at
// prescaler p.
func Reach(clockHz float64, p uint32) float64 {
	return math.Exp2(32) * float64(p) / clockHz
}

// PrescalerFor returns the smallest prescaler whose reach exceeds the
// sample period 1/rate. Rates too slow for every band get MaxPrescaler.
func PrescalerFor(clockHz, rate float64) uint32 {
	period := 1 / rate
	for _, p := range Prescalers[:len(Prescalers)-1] {
		if period < Reach(clockHz, p) {
			return p
		}
	}
	return MaxPrescaler
}

// CompareFor returns the timer compare value producing rate at prescaler p.
func CompareFor(clockHz float64, p uint32, rate float64) uint32 {
	v := clockHz / (float64(p) * rate)
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
