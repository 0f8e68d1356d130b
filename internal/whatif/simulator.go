// Package whatif compares a baseline lifestyle scenario against a modified
// one and reports the annual carbon difference.
package whatif

import (
	"encoding/json"
	"math"
	"sync"
)

// Emission factors in kg CO2e per unit.
const (
	FactorSedanKm    = 0.2
	FactorEVKm       = 0.05
	FactorMeatMeal   = 4.5
	FactorVeggieMeal = 1.5
	FactorGridKWh    = 0.4
	FactorSolarKWh   = 0.02
)

// Factors maps a factor key such as "sedan_km" to kg CO2e per unit.
type Factors map[string]float64

// DefaultFactors returns the fixed factor table.
func DefaultFactors() Factors {
	return Factors{
		"sedan_km":    FactorSedanKm,
		"ev_km":       FactorEVKm,
		"meat_meal":   FactorMeatMeal,
		"veggie_meal": FactorVeggieMeal,
		"grid_kwh":    FactorGridKWh,
		"solar_kwh":   FactorSolarKWh,
	}
}

// Lookup returns the factor for key, or fallback when it is not in the table.
func (f Factors) Lookup(key string, fallback float64) float64 {
	if v, ok := f[key]; ok {
		return v
	}
	return fallback
}

// Params are the parameters of one category in a scenario.
type Params map[string]any

// Number returns params[key] as a float64, or def when absent or not numeric.
func (p Params) Number(key string, def float64) float64 {
	var f float64
	switch v := p[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// String returns params[key] as a string, or def when absent or not a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Scenario maps a category name to its parameters.
type Scenario map[string]Params

// Delta is the outcome of comparing two scenarios.
type Delta struct {
	CarbonReduction float64 `json:"carbon_reduction"`
	// CostSavings and ResourceEfficiency are reserved and always zero.
	CostSavings        float64 `json:"cost_savings"`
	ResourceEfficiency float64 `json:"resource_efficiency"`

	// Categories holds the reduction contributed by each evaluated category.
	Categories map[string]float64 `json:"categories,omitempty"`
}

// Category computes the annual emissions of one scenario category.
type Category interface {
	Name() string
	// Reduction returns baseline emissions minus modified emissions.
	Reduction(baseline, modified Params, factors Factors) float64
}

// Simulator dispatches scenario categories to registered Category
// implementations. It is safe for concurrent use.
type Simulator struct {
	mu         sync.RWMutex
	factors    Factors
	categories map[string]Category
	order      []string
}

// NewSimulator creates a simulator with the transport, diet and energy
// categories registered.
func NewSimulator() *Simulator {
	s := &Simulator{
		factors:    DefaultFactors(),
		categories: make(map[string]Category),
	}
	s.Register(Transport{})
	s.Register(Diet{})
	s.Register(Energy{})
	return s
}

// Register adds c, replacing any category with the same name.
func (s *Simulator) Register(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categories[c.Name()]; !exists {
		s.order = append(s.order, c.Name())
	}
	s.categories[c.Name()] = c
}

// Categories returns the registered category names in registration order.
func (s *Simulator) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// CalculateDelta sums the reduction of every registered category present in
// both scenarios. Categories missing from either side, and names nobody
// registered, are ignored.
func (s *Simulator) CalculateDelta(baseline, modified Scenario) Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delta := Delta{Categories: make(map[string]float64)}
	for _, name := range s.order {
		b, inBaseline := baseline[name]
		m, inModified := modified[name]
		if !inBaseline || !inModified {
			continue
		}
		if b == nil {
			b = Params{}
		}
		if m == nil {
			m = Params{}
		}
		r := s.categories[name].Reduction(b, m, s.factors)
		delta.Categories[name] = r
		delta.CarbonReduction += r
	}
	return delta
}
