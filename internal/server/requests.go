package server

import (
	"net/http"

	"redblood/internal/matching"
	"redblood/pkg/types"
)

type requestView struct {
	*types.BloodRequest
	Distance *float64 `json:"distance,omitempty"`
}

func requestViews(matches []matching.Match[*types.BloodRequest]) []requestView {
	out := make([]requestView, len(matches))
	for i, m := range matches {
		out[i] = requestView{BloodRequest: m.Item, Distance: m.Distance}
	}
	return out
}

func (s *Service) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in types.CreateRequestInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := s.services.Requests.Create(r.Context(), actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"request": req})
}

func (s *Service) handleSearchRequests(w http.ResponseWriter, r *http.Request) {
	var q types.RequestQuery
	if err := decodeQuery(r.URL.Query(), &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	matches, err := s.services.Requests.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"requests": requestViews(matches)})
}

func (s *Service) handleNearbyRequests(w http.ResponseWriter, r *http.Request) {
	var q types.RequestQuery
	if err := decodeQuery(r.URL.Query(), &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	matches, err := s.services.Requests.Nearby(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"requests": requestViews(matches)})
}

// handleGetRequest shows every response to the owner and admins, and only the caller's own to anyone else.
func (s *Service) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	detail, err := s.services.Requests.Detail(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"request": detail})
}

func (s *Service) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	var u types.RequestUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := s.services.Requests.Update(r.Context(), actor(r), r.PathValue("id"), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"request": req})
}

func (s *Service) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Requests.Delete(r.Context(), actor(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Blood request deleted"})
}

func (s *Service) handleActivateRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.services.Requests.Activate(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"request": req})
}

func (s *Service) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.services.Requests.Cancel(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"request": req})
}

type fulfillBody struct {
	FulfilledBy string `json:"fulfilledBy"`
}

func (s *Service) handleFulfillRequest(w http.ResponseWriter, r *http.Request) {
	var body fulfillBody
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := s.services.Requests.Fulfill(r.Context(), actor(r), r.PathValue("id"), body.FulfilledBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"request": req})
}

func (s *Service) handleRespond(w http.ResponseWriter, r *http.Request) {
	var in types.RespondInput
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.services.Coordinator.Respond(r.Context(), actor(r), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"response": res.Response})
}

func (s *Service) handleListResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := s.services.Coordinator.ForRequest(r.Context(), actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"responses": responses})
}

func (s *Service) handleUpdateResponse(w http.ResponseWriter, r *http.Request) {
	var u types.ResponseUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	res, err := s.services.Coordinator.UpdateResponse(ctx, actor(r), r.PathValue("id"), r.PathValue("responseID"), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"response": res.Response, "request": res.Request})
}

func (s *Service) handleAcceptResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := s.services.Coordinator.AcceptResponse(ctx, actor(r), r.PathValue("id"), r.PathValue("responseID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"response": res.Response, "request": res.Request})
}
