package cxmx

import "time"

// nowUnixNano is the sole indirection point onto the wall clock, kept
// as a package-level var so tests can fake time without threading a
// clock interface through every constructor.
var nowUnixNano = func() int64 {
	return time.Now().UnixNano()
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
