package hyperparam

import (
	"math"
	"math/rand"

	"github.com/mimir-aip/mimir-automl/pkg/models"
)

// Sample draws one assignment from the declared ranges. Every declared
// parameter is present in the result.
func Sample(ranges []models.SweepableParam, rng *rand.Rand) models.Assignment {
	out := make(models.Assignment, len(ranges))
	for _, p := range ranges {
		switch p.Kind {
		case models.ParamKindDiscrete:
			if len(p.Values) > 0 {
				v, err := models.Canonical(p.Values[rng.Intn(len(p.Values))])
				if err == nil {
					out[p.Name] = v
				}
			}
		case models.ParamKindFloat:
			out[p.Name] = sampleFloat(p, rng)
		case models.ParamKindLong:
			out[p.Name] = sampleLong(p, rng)
		}
	}
	return out
}

func sampleFloat(p models.SweepableParam, rng *rand.Rand) float64 {
	lo, hi := p.Min, p.Max
	if p.LogScale {
		lo, hi = math.Log(lo), math.Log(hi)
	}

	var x float64
	if p.Steps > 1 {
		i := rng.Intn(p.Steps)
		x = lo + float64(i)*(hi-lo)/float64(p.Steps-1)
	} else {
		x = lo + rng.Float64()*(hi-lo)
	}

	if p.LogScale {
		x = math.Exp(x)
	}
	return clamp(x, p.Min, p.Max)
}

func sampleLong(p models.SweepableParam, rng *rand.Rand) int {
	lo, hi := int(p.Min), int(p.Max)
	if hi <= lo {
		return lo
	}

	if p.LogScale {
		step := p.StepSize
		if step <= 1 {
			step = 2
		}
		// lo * step^k for k in [0, n]
		n := int(math.Floor(math.Log(float64(hi)/float64(lo))/math.Log(step) + 1e-9))
		k := rng.Intn(n + 1)
		v := int(math.Round(float64(lo) * math.Pow(step, float64(k))))
		return int(clamp(float64(v), p.Min, p.Max))
	}

	step := int(p.StepSize)
	if step < 1 {
		step = 1
	}
	n := (hi - lo) / step
	return lo + rng.Intn(n+1)*step
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
