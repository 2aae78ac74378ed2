package weather

import "time"

// AggregateReadings combines multiple provider readings into a single Conditions value.
// Numeric fields are averaged; the condition is selected by majority, ties going
// to the provider listed first.
func AggregateReadings(loc Location, readings []ProviderReading) Conditions {
	if len(readings) == 0 {
		return Conditions{
			Location:  loc,
			Timestamp: time.Now().UTC(),
			Condition: ConditionUnknown,
		}
	}

	var (
		sumTemp     float64
		sumHumidity float64
		sumWind     float64
		sumPressure float64
		sumPrecip   float64
	)

	conditionCounts := make(map[Condition]int)
	order := make([]Condition, 0, len(readings))
	providers := make([]ProviderContribution, 0, len(readings))
	var newestTS time.Time

	for _, r := range readings {
		sumTemp += r.TemperatureC
		sumHumidity += r.HumidityPct
		sumWind += r.WindSpeedMS
		sumPressure += r.PressureHpa
		sumPrecip += r.PrecipMm

		if _, seen := conditionCounts[r.Condition]; !seen {
			order = append(order, r.Condition)
		}
		conditionCounts[r.Condition]++

		if r.Timestamp.After(newestTS) {
			newestTS = r.Timestamp
		}

		providers = append(providers, ProviderContribution{
			ProviderName: r.ProviderName,
			Timestamp:    r.Timestamp,
		})
	}

	n := float64(len(readings))

	bestCond := ConditionUnknown
	bestCount := 0
	for _, cond := range order {
		if count := conditionCounts[cond]; count > bestCount {
			bestCount = count
			bestCond = cond
		}
	}

	if newestTS.IsZero() {
		newestTS = time.Now().UTC()
	}

	return Conditions{
		Location:     loc,
		Timestamp:    newestTS,
		Condition:    bestCond,
		TemperatureC: sumTemp / n,
		HumidityPct:  sumHumidity / n,
		WindSpeed:    sumWind / n,
		Pressure:     sumPressure / n,
		PrecipMM:     sumPrecip / n,
		Providers:    providers,
	}
}
