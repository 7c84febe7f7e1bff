package diag

// fifoSeed makes the FIFO tests reproduce the same byte sequence on
// every run, so a failure can be retraced lane by lane.
const fifoSeed = 19700119

// lcg is the deterministic pattern generator shared by the FIFO and DMA
// tests. It is deliberately tiny; quality does not matter, only that
// push and pop sides regenerate identical sequences.
type lcg struct {
	seed uint32
}

func (r *lcg) srand(seed uint32) {
	r.seed = seed
}

func (r *lcg) rand() uint32 {
	r.seed = r.seed*25173 + 13849
	return r.seed
}
