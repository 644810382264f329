package server

import (
	"net/http"
	"strconv"
	"time"

	"redblood/internal/eligibility"
	"redblood/internal/matching"
	"redblood/pkg/types"
)

type centerView struct {
	*types.DonationCenter
	Distance *float64 `json:"distance,omitempty"`
}

func centerViews(matches []matching.Match[*types.DonationCenter]) []centerView {
	out := make([]centerView, len(matches))
	for i, m := range matches {
		out[i] = centerView{DonationCenter: m.Item, Distance: m.Distance}
	}
	return out
}

func (s *Service) handleListCenters(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	splitList(values, "services")

	var q types.CenterQuery
	if err := decodeQuery(values, &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	matches, err := s.services.Donations.Centers(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"centers": centerViews(matches)})
}

func (s *Service) handleGetCenter(w http.ResponseWriter, r *http.Request) {
	c, err := s.services.Donations.Center(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"center": c})
}

func (s *Service) handleCreateCenter(w http.ResponseWriter, r *http.Request) {
	var c types.DonationCenter
	if err := decodeJSON(w, r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.services.Donations.CreateCenter(r.Context(), actor(r), &c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"center": created})
}

func (s *Service) handleUpdateCenter(w http.ResponseWriter, r *http.Request) {
	var c types.DonationCenter
	if err := decodeJSON(w, r, &c); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.services.Donations.UpdateCenter(r.Context(), actor(r), r.PathValue("id"), &c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"center": updated})
}

func (s *Service) handleEligibilityCriteria(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"criteria": eligibility.Published()})
}

func (s *Service) handleCheckEligibility(w http.ResponseWriter, r *http.Request) {
	var p eligibility.Profile
	if err := decodeOptionalJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.services.Users.CheckEligibility(r.Context(), actor(r).UserID, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"eligibility": res})
}

func (s *Service) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var in types.ScheduleInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.services.Donations.Schedule(r.Context(), actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"donation": d})
}

func (s *Service) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, types.Errorf(types.KindValidation, "invalid limit %q", v))
			return
		}
		limit = n
	}

	upcoming, err := s.services.Donations.Upcoming(r.Context(), actor(r).UserID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"donations": upcoming})
}

func (s *Service) handleMyDonations(w http.ResponseWriter, r *http.Request) {
	var q types.DonationQuery
	if err := decodeQuery(r.URL.Query(), &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	history, err := s.services.Donations.History(r.Context(), actor(r).UserID, q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"donations": history})
}

func (s *Service) handleGetDonation(w http.ResponseWriter, r *http.Request) {
	d, err := s.services.Donations.Get(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"donation": d})
}

type rescheduleBody struct {
	AppointmentDate *time.Time `json:"appointmentDate"`
}

func (s *Service) handleReschedule(w http.ResponseWriter, r *http.Request) {
	var body rescheduleBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.AppointmentDate == nil {
		s.writeError(w, r, types.NewError(types.KindValidation, "appointmentDate is required"))
		return
	}

	d, err := s.services.Donations.Reschedule(r.Context(), actor(r), r.PathValue("id"), *body.AppointmentDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"donation": d})
}

func (s *Service) handleCancelDonation(w http.ResponseWriter, r *http.Request) {
	d, err := s.services.Donations.Cancel(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"donation": d})
}

func (s *Service) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var out types.DonationOutcome
	if err := decodeJSON(w, r, &out); err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.services.Donations.RecordOutcome(r.Context(), actor(r), r.PathValue("id"), out)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"donation": d})
}
