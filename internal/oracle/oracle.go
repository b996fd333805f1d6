// Package oracle abstracts the external service that eventually reveals
// the verification code delivered to a reserved number. The reservation
// manager only sees this interface; whether codes come from a real
// provider or a simulation is a construction-time choice.
package oracle

import "context"

// Oracle looks up whether a verification code arrived for a reservation.
// An empty code with a nil error means "not delivered yet". Callers treat
// any error the same way: a flaky lookup must never fail a reservation.
type Oracle interface {
	CheckDelivery(ctx context.Context, correlationID string) (string, error)
}
