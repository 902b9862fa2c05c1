package orderbook

import (
	"fmt"
	"net/http"
)

// SubmissionError is any failed order-book call. Transient errors (5xx, 429,
// transport) may succeed if repeated; the rest are the caller's fault.
type SubmissionError struct {
	Status      int // 0 when no response was received
	ErrorType   string
	Description string
	Transient   bool
	Err         error
}

func (e *SubmissionError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("order book unreachable: %v", e.Err)
	}
	if e.Description == "" {
		return fmt.Sprintf("order book error %d: %s", e.Status, e.ErrorType)
	}
	return fmt.Sprintf("order book error %d: %s: %s", e.Status, e.ErrorType, e.Description)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func isTransient(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
