// Package common содержит общие для всех слоёв сентинельные ошибки.
// Сравнивать их следует через errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// Ошибки уровня хранилища.
	ErrNotFound       = errors.New("не найдено")
	ErrDuplicateLogin = errors.New("пользователь с таким логином уже существует")

	// Ошибки уровня сервисов.
	ErrUnauthorized  = errors.New("не авторизован")
	ErrWrongPassword = errors.New("неверный пароль")

	// Ошибки валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

// ValidationError описывает нарушенное ограничение входных данных.
// errors.Is(err, ErrValidation) для неё возвращает true.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError создаёт ошибку валидации для поля field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
