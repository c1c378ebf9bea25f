package spotify

import "net/http"

// StatusTransportFailure marks an Outcome for which no response arrived.
const StatusTransportFailure = 0

// Outcome is the result of one HTTP exchange.
type Outcome struct {
	Status int
	Body   []byte
}

// Success reports a 2xx status.
func (o Outcome) Success() bool { return o.Status >= 200 && o.Status <= 299 }

// Unauthorized reports a 401.
func (o Outcome) Unauthorized() bool { return o.Status == http.StatusUnauthorized }

// NotFound reports a 404.
func (o Outcome) NotFound() bool { return o.Status == http.StatusNotFound }

// RateLimited reports a 429.
func (o Outcome) RateLimited() bool { return o.Status == http.StatusTooManyRequests }

// ServerError reports a 5xx.
func (o Outcome) ServerError() bool { return o.Status >= 500 && o.Status <= 599 }

// TransportFailure reports that no response was received.
func (o Outcome) TransportFailure() bool { return o.Status == StatusTransportFailure }

// Retryable reports whether the retry wrapper should try again.
func (o Outcome) Retryable() bool {
	return o.RateLimited() || o.ServerError() || o.TransportFailure()
}
