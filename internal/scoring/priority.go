package scoring

import (
	"math"
	"time"

	"github.com/abdoElHodaky/smartfixapi/internal/models"
)

const (
	// maxScore — верхняя граница итогового priority score.
	maxScore = 200
	// maxBudgetBonus — потолок вклада бюджета в оценку.
	maxBudgetBonus = 50.0
)

// PriorityScore считает приоритет заявки в диапазоне [0, 200] для
// ранжирования ленты рекомендаций. Момент "сейчас" передаётся явно,
// чтобы оценка оставалась детерминированной в тестах.
//
// Оценка складывается из базы по приоритету клиента, вклада бюджета
// и надбавки за близость даты выполнения.
func PriorityScore(request *models.ServiceRequest, now time.Time) int {
	score := baseScore(request.Priority)
	score += int(math.Min(request.BudgetMax/100, maxBudgetBonus))
	score += urgencyBonus(request.ScheduledDate, now)

	if score > maxScore {
		score = maxScore
	}
	return score
}

// baseScore возвращает базу по приоритету клиента; при неизвестном
// значении действует середина шкалы.
func baseScore(priority string) int {
	switch priority {
	case models.PriorityUrgent:
		return 100
	case models.PriorityHigh:
		return 75
	case models.PriorityMedium:
		return 50
	case models.PriorityLow:
		return 25
	default:
		return 50
	}
}

// urgencyBonus возвращает надбавку за близость желаемой даты.
// Дни считаются целиком с округлением вверх; применяется только
// одна из полос.
func urgencyBonus(scheduledDate, now time.Time) int {
	days := int(math.Ceil(scheduledDate.Sub(now).Hours() / 24))
	switch {
	case days <= 1:
		return 30
	case days <= 3:
		return 20
	case days <= 7:
		return 10
	default:
		return 0
	}
}
