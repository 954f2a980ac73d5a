package scoring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/scoring"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func request(priority string, budgetMax float64, scheduled time.Time) *models.ServiceRequest {
	return &models.ServiceRequest{
		Priority:      priority,
		BudgetMax:     budgetMax,
		ScheduledDate: scheduled,
	}
}

func TestPriorityScore_Bands(t *testing.T) {
	farAway := now.AddDate(0, 1, 0)

	tests := []struct {
		name     string
		request  *models.ServiceRequest
		expected int
	}{
		{"urgent base", request(models.PriorityUrgent, 0, farAway), 100},
		{"high base", request(models.PriorityHigh, 0, farAway), 75},
		{"medium base", request(models.PriorityMedium, 0, farAway), 50},
		{"low base", request(models.PriorityLow, 0, farAway), 25},
		{"unknown hint falls back to medium", request("whenever", 0, farAway), 50},
		{"empty hint falls back to medium", request("", 0, farAway), 50},
		{"budget adds max/100", request(models.PriorityLow, 2000, farAway), 45},
		{"budget bonus capped at 50", request(models.PriorityLow, 100000, farAway), 75},
		{"same day adds 30", request(models.PriorityLow, 0, now.Add(6 * time.Hour)), 55},
		{"within three days adds 20", request(models.PriorityLow, 0, now.Add(60 * time.Hour)), 45},
		{"within a week adds 10", request(models.PriorityLow, 0, now.Add(6 * 24 * time.Hour)), 35},
		{"beyond a week adds nothing", request(models.PriorityLow, 0, now.Add(10 * 24 * time.Hour)), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scoring.PriorityScore(tt.request, now))
		})
	}
}

func TestPriorityScore_MaximumBand(t *testing.T) {
	// urgent + бюджет с потолком + сегодняшняя дата: 100+50+30 = 180,
	// клэмп не срабатывает.
	r := request(models.PriorityUrgent, 1000000, now.Add(2*time.Hour))
	assert.Equal(t, 180, scoring.PriorityScore(r, now))
}

func TestPriorityScore_Bounds(t *testing.T) {
	dates := []time.Time{
		now.Add(-24 * time.Hour),
		now,
		now.Add(12 * time.Hour),
		now.AddDate(1, 0, 0),
	}
	budgets := []float64{0, 1, 99, 5000, 1e9}
	priorities := []string{"", "nonsense", models.PriorityLow, models.PriorityUrgent}

	for _, d := range dates {
		for _, b := range budgets {
			for _, p := range priorities {
				score := scoring.PriorityScore(request(p, b, d), now)
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 200)
			}
		}
	}
}
