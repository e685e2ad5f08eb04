package imaging

import "math/rand/v2"

// Sampler draws pseudo-random pixel coordinates. A Sampler is not safe for
// concurrent use; give each analysis run its own.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a Sampler drawing from rng. A nil rng gets a freshly
// seeded generator.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// NewSeededSampler returns a Sampler whose sequence is fully determined by seed.
func NewSeededSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// SampleSize clamps a requested sample count to the number of pixels.
func SampleSize(r Raster, n int) int {
	return min(n, r.Width()*r.Height())
}

// Sample returns SampleSize(r, n) pixels drawn uniformly over the raster,
// with replacement.
func (s *Sampler) Sample(r Raster, n int) []RGB {
	n = SampleSize(r, n)
	if n <= 0 {
		return nil
	}

	w, h := r.Width(), r.Height()
	pixels := make([]RGB, n)
	for i := range pixels {
		x, y := s.Point(w, h)
		pixels[i] = r.At(x, y)
	}
	return pixels
}

// Point returns a coordinate uniform over [0,w) x [0,h). w and h must be positive.
func (s *Sampler) Point(w, h int) (int, int) {
	return s.rng.IntN(w), s.rng.IntN(h)
}
