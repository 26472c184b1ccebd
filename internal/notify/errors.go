package notify

import "errors"

// ErrTooManyClients is returned when a tenant channel is at capacity.
var ErrTooManyClients = errors.New("max clients per system reached")
