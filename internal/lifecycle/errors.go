package lifecycle

import "github.com/pkg/errors"

// Ошибки жизненного цикла. Все конечны для текущей операции и не повторяются.
var (
	ErrInvalidState = errors.New("invalid state")     // Операция недопустима в текущем состоянии
	ErrNotFound     = errors.New("not found")         // Проект, предложение или пользователь не найдены
	ErrValidation   = errors.New("validation failed") // Некорректный ввод
)

func invalidState(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidState, format, args...)
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// NotFound оборачивает ErrNotFound с указанием сущности.
func NotFound(entity string, id interface{}) error {
	return errors.Wrapf(ErrNotFound, "%s %v", entity, id)
}
