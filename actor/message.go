package actor

import "github.com/amp-labs/amp-hfsm/try"

// Message is a request delivered to an actor. When ResponseChan is nil the
// message is fire-and-forget, otherwise the processor answers on it exactly once.
type Message[Request, Response any] struct {
	Request      Request
	ResponseChan chan try.Try[Response]
}
