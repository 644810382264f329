// Package users manages donor and recipient profiles.
package users

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"redblood/internal/eligibility"
	"redblood/internal/geo"
	"redblood/internal/matching"
	"redblood/internal/metrics"
	"redblood/internal/store"
	"redblood/internal/utils"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

// Identity removes the account held by the identity provider.
type Identity interface {
	DeleteUser(ctx context.Context, username string) error
}

// Avatars stores profile pictures by object key.
type Avatars interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

type Options struct {
	DefaultRadiusKm float64
	DefaultLimit    int
	MaxLimit        int
	Now             func() time.Time
}

type Service struct {
	store    store.Store
	identity Identity
	avatars  Avatars
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger
	opts     Options
}

func NewService(st store.Store, identity Identity, avatars Avatars, m *metrics.Metrics, logger logrus.FieldLogger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit == 0 {
		opts.MaxLimit = 100
	}
	return &Service{store: st, identity: identity, avatars: avatars, metrics: m, logger: logger, opts: opts}
}

// DonorMatch is the public view of a donor returned by compatibility searches.
type DonorMatch struct {
	ID         string          `json:"id"`
	FullName   string          `json:"fullName"`
	BloodType  types.BloodType `json:"bloodType"`
	DistanceKm *float64        `json:"distance,omitempty"`
}

// CreateProfile stores the profile for a freshly registered identity.
// Only donor and recipient roles can be chosen at registration.
func (s *Service) CreateProfile(ctx context.Context, userID string, reg types.Registration) (*types.User, error) {
	if userID == "" {
		return nil, types.NewError(types.KindValidation, "user id is required")
	}
	if strings.TrimSpace(reg.Email) == "" {
		return nil, types.NewError(types.KindValidation, "email is required")
	}
	if strings.TrimSpace(reg.FullName) == "" {
		return nil, types.NewError(types.KindValidation, "fullName is required")
	}

	role := reg.Role
	switch role {
	case "":
		role = types.RoleDonor
	case types.RoleDonor, types.RoleRecipient:
	default:
		return nil, types.Errorf(types.KindValidation, "role must be %s or %s", types.RoleDonor, types.RoleRecipient)
	}

	if reg.BloodType != "" && !reg.BloodType.Valid() {
		return nil, types.Errorf(types.KindInvalidBloodType, "invalid blood type %q", reg.BloodType)
	}

	now := s.opts.Now()
	user := &types.User{
		ID:                      userID,
		Email:                   strings.ToLower(strings.TrimSpace(reg.Email)),
		FullName:                strings.TrimSpace(reg.FullName),
		PhoneNumber:             strings.TrimSpace(reg.PhoneNumber),
		BloodType:               reg.BloodType,
		Role:                    role,
		Active:                  true,
		NotificationPreferences: types.DefaultNotificationPreferences,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("profile created")
	return user, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*types.User, error) {
	return s.store.User(ctx, userID)
}

// Get returns another user's profile to that user or an admin.
func (s *Service) Get(ctx context.Context, actor types.Actor, userID string) (*types.User, error) {
	if !actor.CanManage(userID) {
		return nil, types.ErrUnauthorized
	}
	return s.store.User(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, u types.ProfileUpdate) (*types.User, error) {
	var updated *types.User
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		user, err := q.User(ctx, userID)
		if err != nil {
			return err
		}
		if err := applyProfile(user, u, s.opts.Now()); err != nil {
			return err
		}
		if err := q.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyProfile(user *types.User, u types.ProfileUpdate, now time.Time) error {
	if u.FullName != nil {
		if strings.TrimSpace(*u.FullName) == "" {
			return types.NewError(types.KindValidation, "fullName cannot be empty")
		}
		user.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*u.PhoneNumber)
	}
	if u.BloodType != nil {
		if !u.BloodType.Valid() {
			return types.Errorf(types.KindInvalidBloodType, "invalid blood type %q", *u.BloodType)
		}
		user.BloodType = *u.BloodType
	}
	if u.Gender != nil {
		switch *u.Gender {
		case types.GenderMale, types.GenderFemale, types.GenderUnspecified:
			user.Gender = *u.Gender
		default:
			return types.Errorf(types.KindValidation, "invalid gender %q", *u.Gender)
		}
	}
	if u.DateOfBirth != nil {
		if u.DateOfBirth.After(now) {
			return types.NewError(types.KindValidation, "dateOfBirth cannot be in the future")
		}
		user.DateOfBirth = u.DateOfBirth
	}
	if u.WeightKg != nil {
		if *u.WeightKg <= 0 {
			return types.NewError(types.KindValidation, "weight must be positive")
		}
		user.WeightKg = u.WeightKg
	}
	if u.LastDonationDate != nil {
		if u.LastDonationDate.After(now) {
			return types.NewError(types.KindValidation, "lastDonationDate cannot be in the future")
		}
		user.LastDonationDate = u.LastDonationDate
	}
	if u.Address != nil {
		user.Address = *u.Address
	}
	if u.Location != nil {
		if err := geo.Validate(u.Location.Latitude, u.Location.Longitude); err != nil {
			return err
		}
		user.Coordinates = types.CoordinatesOf(*u.Location)
	}
	user.UpdatedAt = now
	return nil
}

func (s *Service) UpdateNotifications(ctx context.Context, userID string, prefs types.NotificationPreferences) (*types.User, error) {
	var updated *types.User
	err := s.store.RunInTx(ctx, func(q store.Queries) error {
		user, err := q.User(ctx, userID)
		if err != nil {
			return err
		}
		user.NotificationPreferences = prefs
		user.UpdatedAt = s.opts.Now()
		if err := q.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// EligibleDonors finds active donors whose blood can be given to recipient.
func (s *Service) EligibleDonors(ctx context.Context, recipient types.BloodType, q types.DonorQuery) ([]DonorMatch, error) {
	var f matching.Filter
	if err := f.CompatibleDonorsFor(recipient); err != nil {
		return nil, err
	}
	if err := f.FromQuery(q.Geo(), s.opts.DefaultRadiusKm); err != nil {
		return nil, err
	}
	f.SortBy, f.Order = q.SortBy, q.Order
	if f.SortBy == "" && f.Origin != nil && f.RadiusKm > 0 {
		f.SortBy = types.SortByDistance
		if f.Order == "" {
			f.Order = types.OrderAsc
		}
	}

	limit, err := matching.Limit(q.Limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.Users(ctx, types.UserFilter{
		Role:       types.RoleDonor,
		BloodTypes: f.BloodTypeIn,
		Active:     utils.Ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load donors: %w", err)
	}

	if q.EligibleOnly {
		now := s.opts.Now()
		kept := candidates[:0]
		for _, u := range candidates {
			if eligibility.CanDonateOn(u.LastDonationDate, now) {
				kept = append(kept, u)
			}
		}
		candidates = kept
	}

	f.Limit = limit
	matches, err := matching.Donors(candidates, f)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMatches("donors", len(matches))

	out := make([]DonorMatch, len(matches))
	for i, m := range matches {
		out[i] = DonorMatch{
			ID:         m.Item.ID,
			FullName:   m.Item.FullName,
			BloodType:  m.Item.BloodType,
			DistanceKm: m.Distance,
		}
	}
	return out, nil
}

// CheckEligibility evaluates the submitted measurements, filling anything omitted from the stored profile.
func (s *Service) CheckEligibility(ctx context.Context, userID string, submitted eligibility.Profile) (eligibility.Result, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return eligibility.Result{}, err
	}
	return eligibility.Evaluate(submitted.Merge(eligibility.FromUser(user)), s.opts.Now()), nil
}

// List is the admin view over all profiles.
func (s *Service) List(ctx context.Context, actor types.Actor, filter types.UserFilter, limit int) ([]*types.User, error) {
	if !actor.IsAdmin() {
		return nil, types.ErrUnauthorized
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, types.Errorf(types.KindValidation, "invalid role %q", filter.Role)
	}
	for _, b := range filter.BloodTypes {
		if !b.Valid() {
			return nil, types.Errorf(types.KindInvalidBloodType, "invalid blood type %q", b)
		}
	}

	limit, err := matching.Limit(limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	if err != nil {
		return nil, err
	}

	users, err := s.store.Users(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// DeleteAccount removes the identity first, then every record the user owns in one transaction.
// The avatar is removed last on a best-effort basis.
func (s *Service) DeleteAccount(ctx context.Context, actor types.Actor) error {
	user, err := s.store.User(ctx, actor.UserID)
	if err != nil {
		return err
	}

	if s.identity != nil {
		if err := s.identity.DeleteUser(ctx, user.Email); err != nil {
			return fmt.Errorf("failed to delete identity: %w", err)
		}
	}

	err = s.store.RunInTx(ctx, func(q store.Queries) error {
		owned, err := q.Requests(ctx, types.RequestFilter{UserID: user.ID})
		if err != nil {
			return err
		}
		for _, r := range owned {
			if err := q.DeleteResponses(ctx, types.ResponseFilter{RequestID: r.ID}); err != nil {
				return err
			}
			if err := q.DeleteRequest(ctx, r.ID); err != nil {
				return err
			}
		}
		if err := q.DeleteResponses(ctx, types.ResponseFilter{UserID: user.ID}); err != nil {
			return err
		}
		if err := q.DeleteDonations(ctx, user.ID); err != nil {
			return err
		}
		return q.DeleteUser(ctx, user.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete account data: %w", err)
	}

	if user.AvatarKey != "" && s.avatars != nil {
		if err := s.avatars.Delete(ctx, user.AvatarKey); err != nil {
			s.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to delete avatar")
		}
	}

	s.logger.WithField("user_id", user.ID).Info("account deleted")
	return nil
}

var avatarTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// SetAvatar uploads a new profile picture and returns a URL for it.
func (s *Service) SetAvatar(ctx context.Context, userID, contentType string, body io.Reader) (string, error) {
	if s.avatars == nil {
		return "", types.NewError(types.KindInvalidState, "avatar storage is not configured")
	}
	ext, ok := avatarTypes[contentType]
	if !ok {
		return "", types.Errorf(types.KindValidation, "unsupported avatar type %q", contentType)
	}

	user, err := s.store.User(ctx, userID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%s/%d.%s", userID, s.opts.Now().Unix(), ext)
	if err := s.avatars.Put(ctx, key, contentType, body); err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	previous := user.AvatarKey
	user.AvatarKey = key
	user.UpdatedAt = s.opts.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return "", err
	}

	if previous != "" && previous != key {
		if err := s.avatars.Delete(ctx, previous); err != nil {
			s.logger.WithError(err).WithField("key", previous).Warn("failed to delete previous avatar")
		}
	}

	return s.avatars.URL(ctx, key)
}

// AvatarURL returns a short-lived URL for the user's avatar, or an empty string when none is set.
func (s *Service) AvatarURL(ctx context.Context, userID string) (string, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.AvatarKey == "" || s.avatars == nil {
		return "", nil
	}
	return s.avatars.URL(ctx, user.AvatarKey)
}
