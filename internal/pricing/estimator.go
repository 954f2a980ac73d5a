package pricing

import (
	"math"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
	"github.com/abdoElHodaky/smartfixapi/internal/models"
)

const (
	// freeTravelRadiusKm — расстояние, в пределах которого выезд бесплатный.
	freeTravelRadiusKm = 10.0
	// travelRatePerKm — надбавка за каждый километр сверх бесплатного радиуса.
	travelRatePerKm = 2.0
	// defaultDurationHours — длительность по умолчанию, если она не указана.
	defaultDurationHours = 1.0
)

// Breakdown раскладывает оценку стоимости по составляющим.
type Breakdown struct {
	FixedPrice    *float64 `json:"fixed_price,omitempty"`
	HourlyRate    *float64 `json:"hourly_rate,omitempty"`
	DurationHours *float64 `json:"duration_hours,omitempty"`
	Subtotal      *float64 `json:"subtotal,omitempty"`
	TravelCost    *float64 `json:"travel_cost,omitempty"`
}

// Estimate — предварительная оценка стоимости пары (исполнитель, заявка).
type Estimate struct {
	EstimatedCost float64   `json:"estimated_cost"`
	Breakdown     Breakdown `json:"breakdown"`
}

// EstimateCost считает предварительную стоимость выполнения заявки
// данным исполнителем. Фиксированная цена на тип услуги имеет приоритет
// над почасовой ставкой; надбавка за выезд добавляется независимо от
// способа формирования базовой цены. Результат детерминирован.
func EstimateCost(provider *models.ServiceProvider, request *models.ServiceRequest) Estimate {
	var est Estimate

	if fixed, ok := provider.FixedPrices[request.ServiceType]; ok {
		est.EstimatedCost = fixed
		est.Breakdown.FixedPrice = &fixed
	} else if provider.HourlyRate != nil {
		rate := *provider.HourlyRate
		duration := request.EstimatedDurationHours
		if duration <= 0 {
			duration = defaultDurationHours
		}
		subtotal := rate * duration

		est.EstimatedCost = subtotal
		est.Breakdown.HourlyRate = &rate
		est.Breakdown.DurationHours = &duration
		est.Breakdown.Subtotal = &subtotal
	}

	distance := geo.DistanceKm(provider.Center(), request.Location())
	if distance > freeTravelRadiusKm {
		travel := (distance - freeTravelRadiusKm) * travelRatePerKm
		est.EstimatedCost += travel
		est.Breakdown.TravelCost = &travel
	}

	est.EstimatedCost = round2(est.EstimatedCost)
	return est
}

// round2 округляет до двух знаков после запятой.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
