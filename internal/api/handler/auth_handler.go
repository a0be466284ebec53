package handler

import (
	"errors"
	"net/http"

	"sweet_shop/internal/app/service"
	"sweet_shop/internal/common"
	"sweet_shop/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const msgMissingCredentials = "Missing credentials. Please provide username and password"

type AuthHandler struct {
	authService *service.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
}

type authPayload struct {
	Message string           `json:"message"`
	Token   string           `json:"token"`
	User    model.PublicUser `json:"user"`
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}

	resp, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		respondError(w, h.log, err, "Error during signup")
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, authPayload{
		Message: "Account created successfully",
		Token:   resp.Token,
		User:    resp.User,
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, msgMissingCredentials)
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		respondError(w, h.log, err, "Error during login")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, authPayload{
		Message: "Login successful",
		Token:   resp.Token,
		User:    resp.User,
	})
}
