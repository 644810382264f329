package lifecycle

import (
	"time"

	"redblood/pkg/types"
)

// Responses start pending and are settled exactly once.
var responseTransitions = map[types.ResponseStatus][]types.ResponseStatus{
	types.ResponseStatusPending: {types.ResponseStatusAccepted, types.ResponseStatusRejected, types.ResponseStatusCancelled},
}

func NewResponse(requestID, userID string, in types.RespondInput, now time.Time) *types.Response {
	return &types.Response{
		RequestID:     requestID,
		UserID:        userID,
		Status:        types.ResponseStatusPending,
		Message:       in.Message,
		ContactInfo:   in.ContactInfo,
		ScheduledDate: in.ScheduledDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TransitionResponse(r *types.Response, to types.ResponseStatus, now time.Time) error {
	if !to.Valid() {
		return types.Errorf(types.KindValidation, "invalid response status %q", to)
	}
	for _, s := range responseTransitions[r.Status] {
		if s == to {
			r.Status = to
			r.UpdatedAt = now
			return nil
		}
	}
	return types.Errorf(types.KindInvalidTransition, "cannot move response from %s to %s", r.Status, to)
}
