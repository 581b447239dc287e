package memstore

import (
	"math"
	"time"
)

// DecayParams configures the decay/reinforcement model.
type DecayParams struct {
	Lambda    float64
	FactorCap float64
	Floor     float64
}

// DefaultDecayParams matches the stated default lambda of 1e-4, plus
// the configured cap/floor defaults resolved in the design's Open
// Questions section (100.0 / 1e-300).
var DefaultDecayParams = DecayParams{Lambda: 1e-4, FactorCap: 100.0, Floor: 1e-300}

// decayComponent computes e^(-lambda*deltaSeconds), the multiplicative
// decay term of , floored to avoid underflow to exact zero.
func (d DecayParams) decayComponent(deltaSeconds float64) float64 {
	v := math.Exp(-d.Lambda * deltaSeconds)
	if v < d.Floor {
		return d.Floor
	}
	return v
}

// reinforcementBoost computes log(1+accessCount), the reinforcement term
// applied on every access.
func reinforcementBoost(accessCount int) float64 {
	return math.Log(1 + float64(accessCount))
}

// Access applies its full on-retrieval update: the elapsed
// time since lastAccessed first decays decayFactor by e^(-lambda*deltaT),
// then the access itself reinforces it by the 1.1 boost (capped), and
// finally accessCount/lastAccessed advance to now.
func (d DecayParams) Access(i *Interaction, now time.Time) {
	deltaSeconds := now.Sub(i.LastAccessed).Seconds()
	i.DecayFactor *= d.decayComponent(deltaSeconds)
	i.DecayFactor *= 1.1
	if i.DecayFactor > d.FactorCap {
		i.DecayFactor = d.FactorCap
	}
	if i.DecayFactor < d.Floor {
		i.DecayFactor = d.Floor
	}
	i.AccessCount++
	i.LastAccessed = now
}

// effectiveScore computes the decay-adjusted similarity contribution used
// during retrieval: sim * decayFactor * (1 + log(1+accessCount)), the
// first two terms of its final score formula.
func effectiveScore(sim, decayFactor float64, accessCount int) float64 {
	return sim * decayFactor * (1 + reinforcementBoost(accessCount))
}
