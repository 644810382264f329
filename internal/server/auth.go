package server

import (
	"context"
	"net/http"
	"strings"

	"redblood/internal/auth"
	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
)

// Accounts is the identity provider behind registration and login.
type Accounts interface {
	SignUp(ctx context.Context, reg types.Registration) (string, error)
	Confirm(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*auth.Tokens, error)
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg types.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.ValidateRegistration(reg); err != nil {
		s.writeError(w, r, err)
		return
	}

	sub, err := s.accounts.SignUp(r.Context(), reg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.services.Users.CreateProfile(r.Context(), sub, reg)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", sub).Error("identity created but profile was not")
		s.writeError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")

	writeJSON(w, http.StatusCreated, envelope{
		Status:  "success",
		Message: "Registration successful. Check your email for a confirmation code.",
		Data:    map[string]any{"user": user},
	})
}

type confirmBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Service) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var body confirmBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.Code) == "" {
		s.writeError(w, r, types.NewError(types.KindValidation, "email and code are required"))
		return
	}

	if err := s.accounts.Confirm(r.Context(), body.Email, body.Code); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Account confirmed"})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Email == "" || body.Password == "" {
		s.writeError(w, r, types.NewError(types.KindValidation, "email and password are required"))
		return
	}

	tokens, err := s.accounts.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	encrypted, err := s.cookie.Encode(s.config.CookieName, tokens.AccessToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    encrypted,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   tokens.ExpiresIn,
		Path:     "/",
	})

	writeData(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Logged out"})
}
