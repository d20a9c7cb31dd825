package api

import (
	"net/http"

	"goarea/internal/auth"
)

// TokenInfoHandler сообщает, нужна ли авторизация, и время жизни токена
func TokenInfoHandler(authEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendJSON(w, http.StatusOK, map[string]interface{}{
			"authEnabled":       authEnabled,
			"expirationMinutes": int(auth.TokenExpiration.Minutes()),
		})
	}
}
