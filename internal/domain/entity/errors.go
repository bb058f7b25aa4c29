package entity

import (
	"errors"
	"fmt"
)

// Виды ошибок конвейера классификации. Проверяются через errors.Is.
var (
	ErrDecode     = errors.New("decode error")
	ErrShape      = errors.New("shape error")
	ErrModelLoad  = errors.New("model load error")
	ErrInference  = errors.New("inference error")
	ErrNumeric    = errors.New("numeric error")
	ErrPermission = errors.New("permission error")
)

// Частные случаи, которые удобно различать вызывающему коду.
var (
	// ErrBusy возвращается, если интерактивная классификация уже выполняется.
	ErrBusy = errors.New("classification already in progress")

	// ErrSessionNotReady возвращается, если модель ещё не загружена или перезагружается.
	ErrSessionNotReady = fmt.Errorf("%w: session is not ready", ErrInference)

	// ErrCameraNotActive возвращается при обращении к выключенной камере.
	ErrCameraNotActive = errors.New("camera is not active")
)

// PipelineError описывает сбой конкретной операции конвейера.
type PipelineError struct {
	Kind error  // один из Err* выше
	Op   string // операция: preprocess, load, run, postprocess, capture
	Err  error  // исходная причина, может быть nil
}

// NewError создаёт ошибку заданного вида.
func NewError(kind error, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// Error реализует интерфейс error.
func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap позволяет errors.Is находить и вид, и причину.
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason возвращает короткую причину для строки статуса.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrSessionNotReady):
		return "model not ready"
	case errors.Is(err, ErrDecode):
		return "invalid image"
	case errors.Is(err, ErrShape):
		return "unexpected image size"
	case errors.Is(err, ErrModelLoad):
		return "model load failed"
	case errors.Is(err, ErrNumeric):
		return "numeric failure"
	case errors.Is(err, ErrPermission):
		return "camera permission denied"
	case errors.Is(err, ErrInference):
		return "inference failed"
	case errors.Is(err, ErrCameraNotActive):
		return "camera is not active"
	default:
		return err.Error()
	}
}
