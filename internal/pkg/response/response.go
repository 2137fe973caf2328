// Package response формирует единый JSON-конверт ответов API:
// {success, data?, error?, message?, code?}.
package response

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// Envelope - тело любого ответа API
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK отвечает 200 с данными
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created отвечает 201 с данными
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Message отвечает 200 с текстовым сообщением
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message})
}

// Fail прерывает обработку с заданным статусом и кодом
func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: message, Code: code})
}

// StatusFor сопоставляет вид ошибки HTTP-статусу
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindBusinessRule, apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error отвечает ошибкой с кодом из apperrors. Внутренние ошибки не раскрываются клиенту.
func Error(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := StatusFor(kind)
	code := apperrors.CodeOf(err)

	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s: внутренняя ошибка: %v", c.Request.Method, c.FullPath(), err)
		Fail(c, status, "INTERNAL_ERROR", "Internal server error")
		return
	}
	if code == "" {
		code = defaultCode(kind)
	}
	Fail(c, status, code, messageOf(err))
}

// messageOf отдает клиенту текст типизированной ошибки без обернутой причины
func messageOf(err error) string {
	var e *apperrors.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func defaultCode(kind apperrors.Kind) string {
	switch kind {
	case apperrors.KindNotFound:
		return apperrors.CodeNotFound
	case apperrors.KindValidation:
		return apperrors.CodeValidation
	case apperrors.KindUnauthorized:
		return apperrors.CodeUnauthorized
	case apperrors.KindForbidden:
		return apperrors.CodeForbidden
	case apperrors.KindConflict:
		return apperrors.CodeConflict
	default:
		return "BUSINESS_RULE"
	}
}
