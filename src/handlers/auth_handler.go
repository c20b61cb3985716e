package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/corrigefolio/backend/src/config"
	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/security"
	"github.com/username/corrigefolio/backend/src/utils"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// AuthHandler implements the single-operator login. The operator password is
// hashed once at startup; only the hash lives in memory afterwards.
type AuthHandler struct {
	authService  *security.AuthService
	passwordHash string
}

func NewAuthHandler(authService *security.AuthService, operatorPasswordHash string) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		passwordHash: operatorPasswordHash,
	}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		logger.L.Warn("Login request with invalid body", "remoteAddr", r.RemoteAddr, "error", err)
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.authService.CompareHashAndPassword(h.passwordHash, credentials.Password); err != nil {
		logger.L.Warn("Login attempt with wrong password", "remoteAddr", r.RemoteAddr)
		utils.SendJSONError(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	accessToken, err := h.authService.GenerateToken("operator")
	if err != nil {
		logger.L.Error("Failed to generate access token", "error", err)
		utils.SendJSONError(w, "Failed to generate access token", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Operator logged in", "remoteAddr", r.RemoteAddr)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(config.Cfg.AccessTokenExpiry.Seconds()),
	})
}

// AuthMiddleware guards the mutating routes with the operator bearer token.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		subject, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
