package pathopt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode separates caller mistakes, malformed corpus data and provider
// failures so callers can tell "nothing fits" apart from "the data is broken".
type ErrorCode string

const (
	CodeInvalidInput            ErrorCode = "invalid_input"
	CodeUnknownLearningObject   ErrorCode = "unknown_learning_object"
	CodeCyclicPrerequisiteGraph ErrorCode = "cyclic_prerequisite_graph"
	CodeInvalidRecord           ErrorCode = "invalid_record"
	CodeProvider                ErrorCode = "provider"
)

// Sentinels usable with errors.Is; they match any *Error with the same code.
var (
	ErrInvalidInput            = &Error{Code: CodeInvalidInput}
	ErrUnknownLearningObject   = &Error{Code: CodeUnknownLearningObject}
	ErrCyclicPrerequisiteGraph = &Error{Code: CodeCyclicPrerequisiteGraph}
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	// IDs lists the learning objects involved: the unknown ids, or the
	// members of a detected cycle.
	IDs []string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == ""
}

func NewError(code ErrorCode, op, message string, cause error, ids ...string) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
		IDs:     ids,
	}
}

func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func CodeOf(err error) ErrorCode {
	var pe *Error
	if !errors.As(err, &pe) {
		return ""
	}
	return pe.Code
}

// IDsOf returns the learning objects attached to err, if any.
func IDsOf(err error) []string {
	var pe *Error
	if !errors.As(err, &pe) {
		return nil
	}
	return pe.IDs
}
