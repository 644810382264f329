package server

import (
	"net/http"
	"strings"

	"redblood/internal/storage"
	"redblood/pkg/types"
)

func (s *Service) handleGetMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.services.Users.Profile(r.Context(), actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Service) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var u types.ProfileUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.services.Users.UpdateProfile(r.Context(), actor(r).UserID, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": updated})
}

func (s *Service) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Users.DeleteAccount(r.Context(), actor(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleLogout(w, r)
}

func (s *Service) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var prefs types.NotificationPreferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.services.Users.UpdateNotifications(r.Context(), actor(r).UserID, prefs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"notificationPreferences": u.NotificationPreferences})
}

func (s *Service) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	url, err := s.services.Users.AvatarURL(r.Context(), actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"url": url})
}

// handlePutAvatar takes the raw image as the request body.
func (s *Service) handlePutAvatar(w http.ResponseWriter, r *http.Request) {
	contentType := strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0])
	body := http.MaxBytesReader(w, r.Body, storage.MaxAvatarBytes+1)

	url, err := s.services.Users.SetAvatar(r.Context(), actor(r).UserID, contentType, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"url": url})
}

func (s *Service) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	status := types.RequestStatus(r.URL.Query().Get("status"))

	list, err := s.services.Requests.ByUser(r.Context(), actor(r).UserID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"requests": list})
}

func (s *Service) handleMyResponses(w http.ResponseWriter, r *http.Request) {
	status := types.ResponseStatus(r.URL.Query().Get("status"))

	list, err := s.services.Coordinator.ByUser(r.Context(), actor(r).UserID, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"responses": list})
}

// handleEligibleDonors takes the recipient blood type from the path. "A+" must be sent as "A%2B".
func (s *Service) handleEligibleDonors(w http.ResponseWriter, r *http.Request) {
	recipient, err := types.ParseBloodType(r.PathValue("bloodType"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var q types.DonorQuery
	if err := decodeQuery(r.URL.Query(), &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	donors, err := s.services.Users.EligibleDonors(r.Context(), recipient, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"donors": donors})
}

func (s *Service) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.services.Users.Get(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": u})
}

type userListQuery struct {
	Role       types.Role        `form:"role"`
	BloodTypes []types.BloodType `form:"bloodType"`
	Active     *bool             `form:"active"`
	PushOnly   bool              `form:"pushOnly"`
	Limit      int               `form:"limit"`
}

func (s *Service) handleListUsers(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	splitList(values, "bloodType")

	var q userListQuery
	if err := decodeQuery(values, &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	list, err := s.services.Users.List(r.Context(), actor(r), types.UserFilter{
		Role:       q.Role,
		BloodTypes: q.BloodTypes,
		Active:     q.Active,
		PushOnly:   q.PushOnly,
	}, q.Limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"users": list})
}
