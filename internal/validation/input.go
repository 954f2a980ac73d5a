package validation

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Константы валидации
const (
	MinTitleLength        = 3
	MaxTitleLength        = 200
	MinDescriptionLength  = 10
	MaxDescriptionLength  = 5000
	MaxRequirementsLength = 2000
	MaxMessageLength      = 2000
	MaxImagesCount        = 10

	MinDurationHours = 0.5
	MaxDurationHours = 24.0

	MinBudget = 0.0
	MaxBudget = 100000000.0 // 100 миллионов
)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateBudget проверяет диапазон бюджета.
func ValidateBudget(min, max float64) error {
	if min < MinBudget {
		return fmt.Errorf("минимальный бюджет не может быть отрицательным")
	}
	if max < min {
		return fmt.Errorf("максимальный бюджет не может быть меньше минимального")
	}
	if max > MaxBudget {
		return fmt.Errorf("максимальный бюджет не может превышать %.0f", MaxBudget)
	}
	return nil
}

// ValidateDuration проверяет предполагаемую длительность работ.
func ValidateDuration(hours float64) error {
	if hours < MinDurationHours || hours > MaxDurationHours {
		return fmt.Errorf("длительность должна быть от %.1f до %.0f часов", MinDurationHours, MaxDurationHours)
	}
	return nil
}

// ValidateScheduledDate проверяет, что желаемая дата в будущем.
func ValidateScheduledDate(date, now time.Time) error {
	if !date.After(now) {
		return fmt.Errorf("желаемая дата выполнения должна быть в будущем")
	}
	return nil
}

// ValidateCoordinates проверяет диапазон координат.
func ValidateCoordinates(longitude, latitude float64) error {
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("долгота должна быть в диапазоне [-180, 180]")
	}
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("широта должна быть в диапазоне [-90, 90]")
	}
	return nil
}

// ValidatePrice проверяет предложенную цену отклика.
func ValidatePrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("цена должна быть положительной")
	}
	if price > MaxBudget {
		return fmt.Errorf("цена не может превышать %.0f", MaxBudget)
	}
	return nil
}
