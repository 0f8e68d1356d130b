package whatif

// Defaults applied when a scenario omits a parameter.
const (
	DefaultAnnualKm  = 10000.0
	DefaultAnnualKWh = 4000.0
	MealsPerYear     = 365 * 3
)

// Transport compares vehicle choices over the baseline's annual distance.
//
// Parameters: annual_km (baseline only, default 10000), vehicle (baseline
// default "sedan", modified default "ev"). The factor key is "<vehicle>_km".
type Transport struct{}

func (Transport) Name() string { return "transport" }

func (Transport) Reduction(baseline, modified Params, f Factors) float64 {
	km := baseline.Number("annual_km", DefaultAnnualKm)
	b := km * f.Lookup(baseline.String("vehicle", "sedan")+"_km", FactorSedanKm)
	m := km * f.Lookup(modified.String("vehicle", "ev")+"_km", FactorEVKm)
	return b - m
}

// Diet compares the share of meat meals over a year of three meals a day.
//
// Parameters: meat_ratio (baseline default 0.7, modified default 0.1).
type Diet struct{}

func (Diet) Name() string { return "diet" }

func (Diet) Reduction(baseline, modified Params, f Factors) float64 {
	emissions := func(ratio float64) float64 {
		return MealsPerYear*ratio*f.Lookup("meat_meal", FactorMeatMeal) +
			MealsPerYear*(1-ratio)*f.Lookup("veggie_meal", FactorVeggieMeal)
	}
	return emissions(baseline.Number("meat_ratio", 0.7)) - emissions(modified.Number("meat_ratio", 0.1))
}

// Energy compares electricity sources over the baseline's annual use.
//
// Parameters: annual_kwh (baseline only, default 4000), source (baseline
// default "grid", modified default "solar"). The factor key is "<source>_kwh".
type Energy struct{}

func (Energy) Name() string { return "energy" }

func (Energy) Reduction(baseline, modified Params, f Factors) float64 {
	kwh := baseline.Number("annual_kwh", DefaultAnnualKWh)
	b := kwh * f.Lookup(baseline.String("source", "grid")+"_kwh", FactorGridKWh)
	m := kwh * f.Lookup(modified.String("source", "solar")+"_kwh", FactorSolarKWh)
	return b - m
}
