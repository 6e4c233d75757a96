package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ConnectionError is the single failure type surfaced by the transport. It
// covers transport failures, unexpected HTTP status and undecodable bodies.
type ConnectionError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ConnectionError) Error() string {
	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// newConnectionError joins the transport error text and the caller context into
// one whitespace-simplified message. When both are empty a diagnostic is logged
// and the message names the failed operation instead.
func newConnectionError(op string, statusCode int, errText, context string, cause error) *ConnectionError {
	msg := composeMessage(errText, context)
	if msg == "" {
		slog.Warn("Error message is empty",
			"op", op,
			"status_code", statusCode,
			"error_text", errText,
			"context", context,
		)
		msg = op + " failed"
	}
	return &ConnectionError{Op: op, StatusCode: statusCode, Message: msg, Err: cause}
}

func composeMessage(errText, context string) string {
	return strings.Join(strings.Fields(errText+"\n"+context), " ")
}

// jsonErrorContext describes a decode failure including the byte offset when known.
func jsonErrorContext(op string, err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("ERROR: %s: Parsing json data: %s, #%d", op, syntaxErr.Error(), syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("ERROR: %s: Parsing json data: %s, #%d", op, typeErr.Error(), typeErr.Offset)
	}
	return fmt.Sprintf("ERROR: %s: Parsing json data: %s", op, err.Error())
}
