// Package server is the JSON REST layer over the request, response, donation and user services.
package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"redblood/internal/coordinator"
	"redblood/internal/donations"
	"redblood/internal/metrics"
	"redblood/internal/requests"
	"redblood/internal/users"
	"redblood/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// TokenVerifier turns an access token into the acting user.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (types.Actor, error)
}

// Services groups the domain services the handlers call into.
type Services struct {
	Requests    *requests.Service
	Coordinator *coordinator.Service
	Donations   *donations.Service
	Users       *users.Service
}

type Service struct {
	logger   logrus.FieldLogger
	config   *types.Config
	services Services
	accounts Accounts
	verifier TokenVerifier
	cookie   *securecookie.SecureCookie
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	ready    func(ctx context.Context) error

	handler http.Handler
	server  *http.Server
}

// New builds the router. accounts may be nil, in which case the /v1/auth routes are not mounted.
// gatherer backs /metrics and ready backs /readyz; either may be nil.
func New(
	config *types.Config,
	logger logrus.FieldLogger,
	services Services,
	accounts Accounts,
	verifier TokenVerifier,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	ready func(ctx context.Context) error,
) (*Service, error) {
	mux := flow.New()

	cookie, err := newSecureCookie(config, logger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		logger:   logger,
		config:   config,
		services: services,
		accounts: accounts,
		verifier: verifier,
		cookie:   cookie,
		metrics:  m,
		gatherer: gatherer,
		ready:    ready,
	}

	// Trailing slashes never match a flow route, so the redirect has to sit in front of the mux.
	s.handler = s.StripTrailingSlash(mux)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.ServerPort),
		Handler:           s.handler,
		ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.buildRouter(mux)

	return s, nil
}

// newSecureCookie decodes the configured keys. Missing keys are generated, which
// invalidates existing session cookies on restart.
func newSecureCookie(config *types.Config, logger logrus.FieldLogger) (*securecookie.SecureCookie, error) {
	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("decode COOKIE_HASH_KEY: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("decode COOKIE_BLOCK_KEY: %w", err)
	}

	if len(hashKey) == 0 {
		logger.Warn("COOKIE_HASH_KEY not set, generating an ephemeral key")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if len(blockKey) == 0 {
		logger.Warn("COOKIE_BLOCK_KEY not set, generating an ephemeral key")
		blockKey = securecookie.GenerateRandomKey(32)
	}

	return securecookie.New(hashKey, blockKey), nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, types.KindNotFound, "route not found")
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, types.KindValidation, "method not allowed")
	})

	r.Use(s.Recover)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady, http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}), http.MethodGet)
	}

	if s.accounts != nil {
		s.handle(r, "/v1/auth/register", s.handleRegister, http.MethodPost)
		s.handle(r, "/v1/auth/confirm", s.handleConfirm, http.MethodPost)
		s.handle(r, "/v1/auth/login", s.handleLogin, http.MethodPost)
	}
	s.handle(r, "/v1/auth/logout", s.handleLogout, http.MethodPost)

	s.handle(r, "/v1/donations/centers", s.handleListCenters, http.MethodGet)
	s.handle(r, "/v1/donations/centers/:id", s.handleGetCenter, http.MethodGet)
	s.handle(r, "/v1/donations/eligibility", s.handleEligibilityCriteria, http.MethodGet)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		s.handle(r, "/v1/requests", s.handleCreateRequest, http.MethodPost)
		s.handle(r, "/v1/requests", s.handleSearchRequests, http.MethodGet)
		s.handle(r, "/v1/requests/nearby", s.handleNearbyRequests, http.MethodGet)
		s.handle(r, "/v1/requests/:id", s.handleGetRequest, http.MethodGet)
		s.handle(r, "/v1/requests/:id", s.handleUpdateRequest, http.MethodPut)
		s.handle(r, "/v1/requests/:id", s.handleDeleteRequest, http.MethodDelete)
		s.handle(r, "/v1/requests/:id/activate", s.handleActivateRequest, http.MethodPost)
		s.handle(r, "/v1/requests/:id/cancel", s.handleCancelRequest, http.MethodPost)
		s.handle(r, "/v1/requests/:id/fulfill", s.handleFulfillRequest, http.MethodPost)
		s.handle(r, "/v1/requests/:id/responses", s.handleRespond, http.MethodPost)
		s.handle(r, "/v1/requests/:id/responses", s.handleListResponses, http.MethodGet)
		s.handle(r, "/v1/requests/:id/responses/:responseID", s.handleUpdateResponse, http.MethodPut)
		s.handle(r, "/v1/requests/:id/responses/:responseID/accept", s.handleAcceptResponse, http.MethodPost)

		s.handle(r, "/v1/donations/appointments", s.handleSchedule, http.MethodPost)
		s.handle(r, "/v1/donations/appointments/upcoming", s.handleUpcoming, http.MethodGet)
		s.handle(r, "/v1/donations/appointments/:id", s.handleGetDonation, http.MethodGet)
		s.handle(r, "/v1/donations/appointments/:id", s.handleReschedule, http.MethodPut)
		s.handle(r, "/v1/donations/appointments/:id", s.handleCancelDonation, http.MethodDelete)
		s.handle(r, "/v1/donations/eligibility/check", s.handleCheckEligibility, http.MethodPost)

		s.handle(r, "/v1/users/me", s.handleGetMe, http.MethodGet)
		s.handle(r, "/v1/users/me", s.handleUpdateMe, http.MethodPut)
		s.handle(r, "/v1/users/me", s.handleDeleteMe, http.MethodDelete)
		s.handle(r, "/v1/users/me/notifications", s.handleUpdateNotifications, http.MethodPut)
		s.handle(r, "/v1/users/me/avatar", s.handleGetAvatar, http.MethodGet)
		s.handle(r, "/v1/users/me/avatar", s.handlePutAvatar, http.MethodPut)
		s.handle(r, "/v1/users/me/requests", s.handleMyRequests, http.MethodGet)
		s.handle(r, "/v1/users/me/responses", s.handleMyResponses, http.MethodGet)
		s.handle(r, "/v1/users/me/donations", s.handleMyDonations, http.MethodGet)
		s.handle(r, "/v1/users/donors/:bloodType", s.handleEligibleDonors, http.MethodGet)
		s.handle(r, "/v1/users/:id", s.handleGetUser, http.MethodGet)

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireAdmin)

			s.handle(r, "/v1/users", s.handleListUsers, http.MethodGet)
			s.handle(r, "/v1/donations/centers", s.handleCreateCenter, http.MethodPost)
			s.handle(r, "/v1/donations/centers/:id", s.handleUpdateCenter, http.MethodPut)
			s.handle(r, "/v1/donations/appointments/:id/status", s.handleRecordOutcome, http.MethodPost)
		})
	})
}

// handle registers h and records its metrics under the route pattern rather than the raw path.
func (s *Service) handle(r *flow.Mux, pattern string, h http.HandlerFunc, methods ...string) {
	r.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		started := time.Now()
		rw := wrap(w)
		h(rw, req)
		s.metrics.ObserveHTTP(req.Method, pattern, rw.statusCode, time.Since(started))
	}, methods...)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WithError(err).Warn("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
