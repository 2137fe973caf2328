package errors

import (
	"errors"
	"fmt"
)

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken используется, когда токен истек.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict используется для конфликтов состояния (уникальные ключи, гонки).
	ErrConflict = errors.New("resource state conflict")

	// ErrBusinessRule используется, когда операция нарушает правило предметной области
	// (челлендж неактивен, уровень слишком низкий, этап уже пройден и т.д.).
	ErrBusinessRule = errors.New("business rule violation")
)

// Kind классифицирует ошибку для транспортного слоя.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBusinessRule
	KindValidation
	KindUnauthorized
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// sentinel возвращает общую ошибку, соответствующую виду.
func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindBusinessRule:
		return ErrBusinessRule
	case KindValidation:
		return ErrValidation
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindConflict:
		return ErrConflict
	default:
		return nil
	}
}

// Error - типизированная ошибка с видом и машинным кодом.
// errors.Is(err, ErrNotFound) срабатывает для любой ошибки вида KindNotFound,
// errors.Is(err, ErrChallengeFull) - для любой ошибки с тем же кодом.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if s := e.Kind.sentinel(); s != nil && target == s {
		return true
	}
	var t *Error
	if errors.As(target, &t) {
		return t.Code != "" && t.Code == e.Code
	}
	return false
}

// New создает типизированную ошибку
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap создает типизированную ошибку, оборачивающую причину
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Validation - сокращение для ошибки валидации входных данных
func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

// KindOf возвращает вид ошибки. Нетипизированные общие ошибки распознаются по sentinel.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBusinessRule):
		return KindBusinessRule
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrExpiredToken):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	}
	return KindInternal
}

// CodeOf возвращает машинный код ошибки или пустую строку
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
