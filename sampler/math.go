package sampler

import "github.com/chewxy/math32"

func expf(x float32) float32 { return math32.Exp(x) }
