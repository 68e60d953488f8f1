package helio

import (
	"runtime"
	"time"
)

// defaultMaxSpinLimit is how many empty iterations the loop tolerates before
// it is willing to park in the backend wait.
const defaultMaxSpinLimit = 5

// pause relaxes the CPU between fully-drained iterations. Early spins only
// yield the processor; sustained idleness escalates to short sleeps so a
// quiet proactor does not burn a core.
func pause(spins uint32) {
	switch {
	case spins < 16:
		runtime.Gosched()
	case spins < 64:
		time.Sleep(time.Microsecond)
	default:
		time.Sleep(20 * time.Microsecond)
	}
}
