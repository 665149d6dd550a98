package negotiation

const (
	mtN         = 624
	mtM         = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff
)

// mt19937 is the classic Mersenne Twister with the init_by_array seeding
// scheme. Shuffle and Choice below reproduce the rejection-sampled bounded
// draws most scripting-language runtimes layer on top of it, which is what
// makes speaker orders and debate queues reproducible across engine
// reimplementations, not just across Go processes.
type mt19937 struct {
	mt  [mtN]uint32
	mti int
}

// newMT19937 seeds the generator from a non-negative integer key, split
// into 32-bit words, low word first.
func newMT19937(seed uint64) *mt19937 {
	key := []uint32{uint32(seed & 0xffffffff)}
	if hi := uint32(seed >> 32); hi != 0 {
		key = append(key, hi)
	}
	g := &mt19937{}
	g.initByArray(key)
	return g
}

func (g *mt19937) initGenrand(s uint32) {
	g.mt[0] = s
	for i := 1; i < mtN; i++ {
		g.mt[i] = 1812433253*(g.mt[i-1]^(g.mt[i-1]>>30)) + uint32(i)
	}
	g.mti = mtN
}

func (g *mt19937) initByArray(key []uint32) {
	g.initGenrand(19650218)
	i, j := 1, 0
	k := mtN
	if len(key) > k {
		k = len(key)
	}
	for ; k > 0; k-- {
		g.mt[i] = (g.mt[i] ^ ((g.mt[i-1] ^ (g.mt[i-1] >> 30)) * 1664525)) + key[j] + uint32(j)
		i++
		j++
		if i >= mtN {
			g.mt[0] = g.mt[mtN-1]
			i = 1
		}
		if j >= len(key) {
			j = 0
		}
	}
	for k = mtN - 1; k > 0; k-- {
		g.mt[i] = (g.mt[i] ^ ((g.mt[i-1] ^ (g.mt[i-1] >> 30)) * 1566083941)) - uint32(i)
		i++
		if i >= mtN {
			g.mt[0] = g.mt[mtN-1]
			i = 1
		}
	}
	g.mt[0] = 0x80000000
}

func (g *mt19937) uint32() uint32 {
	if g.mti >= mtN {
		for kk := 0; kk < mtN-mtM; kk++ {
			y := (g.mt[kk] & mtUpperMask) | (g.mt[kk+1] & mtLowerMask)
			g.mt[kk] = g.mt[kk+mtM] ^ (y >> 1) ^ ((y & 1) * mtMatrixA)
		}
		for kk := mtN - mtM; kk < mtN-1; kk++ {
			y := (g.mt[kk] & mtUpperMask) | (g.mt[kk+1] & mtLowerMask)
			g.mt[kk] = g.mt[kk+(mtM-mtN)] ^ (y >> 1) ^ ((y & 1) * mtMatrixA)
		}
		y := (g.mt[mtN-1] & mtUpperMask) | (g.mt[0] & mtLowerMask)
		g.mt[mtN-1] = g.mt[mtM-1] ^ (y >> 1) ^ ((y & 1) * mtMatrixA)
		g.mti = 0
	}
	y := g.mt[g.mti]
	g.mti++
	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// getrandbits returns k random bits, 1 <= k <= 64. Words are consumed in
// little-endian order with the final partial word truncated from the top.
func (g *mt19937) getrandbits(k uint) uint64 {
	if k <= 32 {
		return uint64(g.uint32() >> (32 - k))
	}
	lo := uint64(g.uint32())
	hi := uint64(g.uint32() >> (64 - k))
	return lo | hi<<32
}

// randbelow returns a uniform value in [0, n) via rejection sampling.
func (g *mt19937) randbelow(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	k := uint(bitLen(n))
	r := g.getrandbits(k)
	for r >= n {
		r = g.getrandbits(k)
	}
	return r
}

func bitLen(n uint64) int {
	l := 0
	for n > 0 {
		l++
		n >>= 1
	}
	return l
}

// shuffle performs an in-place Fisher-Yates shuffle from the tail down.
func (g *mt19937) shuffle(xs []string) {
	for i := len(xs) - 1; i > 0; i-- {
		j := g.randbelow(uint64(i + 1))
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// choice returns a uniformly chosen index into a sequence of length n.
func (g *mt19937) choice(n int) int {
	return int(g.randbelow(uint64(n)))
}
