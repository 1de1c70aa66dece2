package flow

import (
	"math"
	"math/rand"
)

// InjectRootNoise blends a Dirichlet-ish exploration noise into the
// root's policy priors, the way AlphaZero-style engines perturb the root
// immediately after its first expansion so self-play doesn't always
// pick the same best line (spec.md §4.G's "noise injection after root
// expansion"). alpha controls the noise's concentration (lower = more
// peaked, like lc0/AlphaZero's ~0.3) and eps is the blend fraction.
//
// The Dirichlet sample is approximated via normalized
// Gamma(alpha,1)-distributed draws (Gamma(alpha) ~ U^(1/alpha) is a
// standard cheap approximation for small alpha); this is best-effort,
// not bit-exact Dirichlet sampling.
func InjectRootNoise(priors []float32, alpha, eps float32, rng *rand.Rand) {
	if len(priors) == 0 || eps <= 0 {
		return
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	noise := make([]float32, len(priors))
	var sum float32
	for i := range noise {
		u := rng.Float64()
		if u <= 0 {
			u = 1e-12
		}
		v := float32(math.Pow(u, 1.0/float64(alpha)))
		noise[i] = v
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range priors {
		priors[i] = (1-eps)*priors[i] + eps*(noise[i]/sum)
	}
}
