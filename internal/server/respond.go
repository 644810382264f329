package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"redblood/pkg/types"

	"github.com/go-playground/form/v4"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

var decoder = newQueryDecoder()

func newQueryDecoder() *form.Decoder {
	d := form.NewDecoder()

	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		return parseTime(vals[0])
	}, time.Time{})

	// A "+" in a query string arrives as a space.
	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		if b, err := types.ParseBloodType(vals[0]); err == nil {
			return b, nil
		}
		return types.BloodType(vals[0]), nil
	}, types.BloodType(""))

	return d
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

type envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Kind    types.ErrorKind `json:"kind,omitempty"`
	Data    any            `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: "success", Data: data})
}

func writeFailure(w http.ResponseWriter, status int, kind types.ErrorKind, msg string) {
	label := "fail"
	if status >= http.StatusInternalServerError {
		label = "error"
	}
	writeJSON(w, status, envelope{Status: label, Kind: kind, Message: msg})
}

func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindValidation, types.KindInvalidCoordinate, types.KindInvalidBloodType, types.KindIncompatibleBloodType:
		return http.StatusBadRequest
	case types.KindUnauthenticated:
		return http.StatusUnauthorized
	case types.KindUnauthorized:
		return http.StatusForbidden
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindInvalidState, types.KindInvalidTransition, types.KindRequestNotActive:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps err to its status. Internal errors are logged and replaced with a generic message.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := types.KindOf(err)
	status := statusForKind(kind)

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeFailure(w, status, types.KindInternal, "internal server error")
		return
	}

	var e *types.Error
	msg := err.Error()
	if errors.As(err, &e) {
		msg = e.Message
	}
	writeFailure(w, status, kind, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return types.WrapError(types.KindValidation, "invalid JSON body", err)
	}
	return nil
}

// decodeOptionalJSON allows an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(w, r, dst)
}

func decodeQuery(values url.Values, dst any) error {
	if err := decoder.Decode(dst, values); err != nil {
		return types.WrapError(types.KindValidation, "invalid query parameters", err)
	}
	return nil
}

// splitList expands comma separated values so both services=a,b and services=a&services=b work.
func splitList(values url.Values, key string) {
	raw, ok := values[key]
	if !ok {
		return
	}
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	values[key] = out
}
