package core

import (
	"net/http"
	"time"

	"sellerpilot/internal/auth"
	"sellerpilot/internal/types"
)

// sessionResponse is the login response body.
type sessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      types.AuthUser `json:"user"`
}

func (s *Server) handleTelegramLogin(w http.ResponseWriter, r *http.Request) {
	var data auth.TelegramAuthData
	if err := DecodeJSON(w, r, &data); err != nil {
		Error(w, r, err)
		return
	}

	sess, err := s.Auth.LoginTelegram(data)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: sessionResponse{
		Token:     sess.ID,
		ExpiresAt: sess.ExpiresAt,
		User:      sess.User,
	}})
}

type adminLoginRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}

	sess, err := s.Auth.LoginAdmin(req.Token)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: sessionResponse{
		Token:     sess.ID,
		ExpiresAt: sess.ExpiresAt,
		User:      sess.User,
	}})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUser(r.Context())
	if !ok {
		Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "no authenticated user", nil))
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.Logout(bearerToken(r))
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]bool{"logged_out": true}})
}
