package notify

import (
	"context"
	"fmt"

	"redblood/internal/compat"
	"redblood/internal/matching"
	"redblood/internal/utils"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

// Sender delivers one notification. Push, SMS and email gateways live behind it.
type Sender interface {
	Send(ctx context.Context, n types.Notification) error
}

// UserSource is the part of the store the worker reads audiences from.
type UserSource interface {
	User(ctx context.Context, userID string) (*types.User, error)
	Users(ctx context.Context, filter types.UserFilter) ([]*types.User, error)
}

// Worker turns domain events into notifications for the affected users.
type Worker struct {
	users    UserSource
	sender   Sender
	logger   logrus.FieldLogger
	radiusKm float64
}

func NewWorker(users UserSource, sender Sender, logger logrus.FieldLogger, radiusKm float64) *Worker {
	return &Worker{users: users, sender: sender, logger: logger, radiusKm: radiusKm}
}

func (w *Worker) Handle(ctx context.Context, event types.Event) error {
	notifications, err := w.Notifications(ctx, event)
	if err != nil {
		return err
	}

	var failed int
	for _, n := range notifications {
		if err := w.sender.Send(ctx, n); err != nil {
			failed++
			w.logger.WithError(err).WithField("user_id", n.UserID).Warn("failed to send notification")
		}
	}

	w.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"sent":       len(notifications) - failed,
		"failed":     failed,
	}).Info("event handled")

	return nil
}

// Notifications resolves the audience and message for an event.
func (w *Worker) Notifications(ctx context.Context, event types.Event) ([]types.Notification, error) {
	data := map[string]string{"requestId": event.RequestID, "type": string(event.Type)}

	switch event.Type {
	case types.EventRequestCreated:
		donors, err := w.nearbyDonors(ctx, event)
		if err != nil {
			return nil, err
		}
		out := make([]types.Notification, 0, len(donors))
		for _, d := range donors {
			out = append(out, types.Notification{
				UserID: d.ID,
				Title:  fmt.Sprintf("Urgent Blood Request: %s", event.BloodType),
				Body:   fmt.Sprintf("A %s request for %s blood has been made at %s", event.Urgency, event.BloodType, event.Hospital),
				Data:   data,
			})
		}
		return out, nil

	case types.EventRequestStatusChanged:
		title, body := statusMessage(event.Status)
		return w.to(ctx, event.RequestOwner, title, body, data)

	case types.EventResponseCreated:
		return w.to(ctx, event.RequestOwner, "New Response to Your Request",
			"A donor has responded to your blood request", data)

	case types.EventResponseUpdated:
		return w.to(ctx, event.ResponderID, "Response Updated",
			fmt.Sprintf("Your response to a blood request was %s", event.Status), data)
	}

	return nil, nil
}

func statusMessage(status string) (string, string) {
	switch types.RequestStatus(status) {
	case types.RequestStatusFulfilled:
		return "Blood Request Fulfilled", "Your blood request has been fulfilled. Thank you!"
	case types.RequestStatusCancelled:
		return "Blood Request Cancelled", "Your blood request has been cancelled."
	case types.RequestStatusExpired:
		return "Blood Request Expired", "Your blood request has expired. You can create a new request if needed."
	}
	return "Blood Request Updated", fmt.Sprintf("Your blood request status is now: %s", status)
}

// to addresses a single user who has push notifications enabled.
func (w *Worker) to(ctx context.Context, userID, title, body string, data map[string]string) ([]types.Notification, error) {
	if userID == "" {
		return nil, nil
	}

	user, err := w.users.User(ctx, userID)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.NotificationPreferences.Push {
		return nil, nil
	}

	return []types.Notification{{UserID: userID, Title: title, Body: body, Data: data}}, nil
}

// nearbyDonors finds active donors who can give to the request and, when it has a location,
// are within the worker radius.
func (w *Worker) nearbyDonors(ctx context.Context, event types.Event) ([]*types.User, error) {
	compatible, err := compat.DonorsFor(event.BloodType)
	if err != nil {
		return nil, err
	}

	candidates, err := w.users.Users(ctx, types.UserFilter{
		Role:       types.RoleDonor,
		BloodTypes: compatible,
		Active:     utils.Ptr(true),
		PushOnly:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load donors: %w", err)
	}

	filter := matching.Filter{}
	if event.Location != nil && w.radiusKm > 0 {
		filter.Origin = event.Location
		filter.RadiusKm = w.radiusKm
		filter.SortBy = types.SortByDistance
	}

	matches, err := matching.Donors(candidates, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*types.User, 0, len(matches))
	for _, m := range matches {
		if m.Item.ID != event.RequestOwner {
			out = append(out, m.Item)
		}
	}
	return out, nil
}

// LogSender logs notifications instead of delivering them.
type LogSender struct {
	logger logrus.FieldLogger
}

func NewLogSender(logger logrus.FieldLogger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n types.Notification) error {
	s.logger.WithFields(logrus.Fields{
		"user_id": n.UserID,
		"title":   n.Title,
		"body":    n.Body,
	}).Info("notification")
	return nil
}
