package routing

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"call-router/internal/directory"
	"call-router/internal/identity"
)

// RoutingEngine resolves the owners of a dialed number and picks one attender.
//
// Priority is first match over owners ordered by agent ID:
//  1. Phone device with a mobile number (presence is not required)
//  2. Computer device with a live session
//
// Return routing decision only. No side effects (no DB writes, no carrier calls).
type RoutingEngine struct {
	Owners OwnerResolver
	Log    *slog.Logger
}

func NewRoutingEngine(owners OwnerResolver, log *slog.Logger) *RoutingEngine {
	if log == nil {
		log = slog.Default()
	}
	return &RoutingEngine{Owners: owners, Log: log}
}

func (e *RoutingEngine) Route(ctx context.Context, dialed string) Decision {
	if e.Owners == nil {
		e.Log.Error("routing: owner resolver not configured", "to", dialed)
		return NoAgent(ReasonLookupFailed)
	}

	owners, err := e.Owners.ResolveOwners(ctx, dialed)
	if err != nil {
		attrs := []any{"to", dialed, "err", err}
		var le *directory.LookupError
		if errors.As(err, &le) {
			attrs = append(attrs, "source", le.Source, "timeout", le.Timeout())
		}
		e.Log.Warn("routing: owner lookup failed, falling back", attrs...)
		return NoAgent(ReasonLookupFailed)
	}

	d := Select(owners)
	e.Log.Debug("routing: decision", "to", dialed, "owners", len(owners), "agent_id", d.AgentID, "channel", d.Channel, "reason", d.Reason)
	return d
}

// Select applies the tie-break policy to owners. The input order is ignored;
// owners are considered in ascending agent ID order so the result is stable.
func Select(owners []directory.Owner) Decision {
	if len(owners) == 0 {
		return NoAgent(ReasonNoOwner)
	}

	ordered := make([]directory.Owner, len(owners))
	copy(ordered, owners)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AgentID < ordered[j].AgentID })

	for _, o := range ordered {
		if o.AgentID == "" {
			continue
		}
		switch o.Device {
		case directory.DevicePhone:
			if o.MobileNo != "" {
				return Decision{AgentID: o.AgentID, Channel: ChannelPhone, Target: o.MobileNo, Reason: ReasonPhone}
			}
		case directory.DeviceComputer:
			if o.Present {
				return Decision{AgentID: o.AgentID, Channel: ChannelComputer, Target: identity.Sanitize(o.AgentID), Reason: ReasonComputer}
			}
		}
	}
	return NoAgent(ReasonNoneEligible)
}
