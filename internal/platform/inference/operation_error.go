package inference

import "fmt"

type OperationErrorCode string

const (
	OperationErrorBadInput         OperationErrorCode = "bad_input"
	OperationErrorBadResponse      OperationErrorCode = "bad_response"
	OperationErrorEncodeFailed     OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed     OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed  OperationErrorCode = "transport_failed"
	OperationErrorTimeout          OperationErrorCode = "timeout"
	OperationErrorModelUnavailable OperationErrorCode = "model_unavailable"
	OperationErrorCallFailed       OperationErrorCode = "call_failed"
)

type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "inference operation failed"
	}
	if e.Message != "" {
		return fmt.Sprintf(
			"inference operation failed (op=%s code=%s status=%d): %s",
			e.Operation,
			e.Code,
			e.StatusCode,
			e.Message,
		)
	}
	if e.Cause != nil {
		return fmt.Sprintf(
			"inference operation failed (op=%s code=%s status=%d): %v",
			e.Operation,
			e.Code,
			e.StatusCode,
			e.Cause,
		)
	}
	return fmt.Sprintf(
		"inference operation failed (op=%s code=%s status=%d)",
		e.Operation,
		e.Code,
		e.StatusCode,
	)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{
		Code:      code,
		Operation: op,
		Message:   msg,
		Cause:     cause,
	}
}
