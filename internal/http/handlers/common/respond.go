package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondError отправляет единообразный ответ об ошибке.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// RespondUnauthorized отправляет 401.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest отправляет 400.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// Fail передаёт ошибку сервиса централизованному обработчику.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
}
