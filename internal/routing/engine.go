package routing

import (
	"context"

	"call-router/internal/directory"
)

// Router decides who should take an inbound call on a dialed number.
//
// Route never fails: lookup problems and the absence of an eligible attender
// are both reported as a ChannelNone decision, which the response builder
// turns into the spoken fallback.
type Router interface {
	Route(ctx context.Context, dialed string) Decision
}

// OwnerResolver is the slice of directory.Resolver the engine depends on.
type OwnerResolver interface {
	ResolveOwners(ctx context.Context, number string) ([]directory.Owner, error)
}

// NewNoopRouter returns a router that always falls back.
func NewNoopRouter() Router { return noopRouter{} }

type noopRouter struct{}

func (noopRouter) Route(ctx context.Context, dialed string) Decision {
	return NoAgent(ReasonNoOwner)
}
