package handlers

import (
	"net/http"
	"time"

	"eventhub/auth"
	"eventhub/middleware"
	"eventhub/response"

	"go.uber.org/zap"
)

type AuthHandler struct {
	broker        *auth.Broker
	sessionTTL    time.Duration
	secureCookie  bool
	legacyEnabled bool
	logger        *zap.Logger
}

func NewAuthHandler(broker *auth.Broker, sessionTTL time.Duration, secureCookie, legacyEnabled bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		broker:        broker,
		sessionTTL:    sessionTTL,
		secureCookie:  secureCookie,
		legacyEnabled: legacyEnabled,
		logger:        logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Login authenticates staff with email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.broker.PasswordLogin(r.Context(), req.Email, req.Password)
	h.respond(w, res, err)
}

// Signup registers an admin account that waits for approval.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	u, err := h.broker.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Pending(w, "account created, awaiting approval", map[string]any{"email": u.Email, "name": u.Name})
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.broker.GoogleLogin(r.Context(), req.IDToken)
	h.respond(w, res, err)
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	issued, err := h.broker.RequestOTP(r.Context(), req.Email)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, issued)
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	issued, err := h.broker.ResendOTP(r.Context(), req.Email)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, issued)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	res, err := h.broker.VerifyOTP(r.Context(), req.Email, req.Code)
	h.respond(w, res, err)
}

// EmailLogin is the deprecated email-only login.
func (h *AuthHandler) EmailLogin(w http.ResponseWriter, r *http.Request) {
	if !h.legacyEnabled {
		response.Fail(w, http.StatusGone, "email-only login has been retired, use a one-time code")
		return
	}
	var req otpRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Deprecation", "true")
	h.logger.Warn("deprecated email-only login used", zap.String("email", req.Email))
	res, err := h.broker.LegacyLogin(r.Context(), req.Email)
	h.respond(w, res, err)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	response.OK(w, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	response.OK(w, nil)
}

// respond writes a granted login with its session cookie, or a pending answer.
func (h *AuthHandler) respond(w http.ResponseWriter, res *auth.Result, err error) {
	if err != nil {
		response.Error(w, err)
		return
	}
	if res.Outcome == auth.OutcomePending {
		response.Pending(w, "your access request is awaiting approval", map[string]any{"email": res.Email, "name": res.Name})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	response.OK(w, res)
}
