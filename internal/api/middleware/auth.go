package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"statarb/pkg/crypto"
)

// BearerAuth проверяет управляющий токен API.
//
// Токен передается в заголовке Authorization: Bearer <token> и
// сверяется с bcrypt-хэшем из конфигурации. Пустой хэш отключает
// аутентификацию (локальное развертывание).
func BearerAuth(tokenHash string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !crypto.VerifyToken(token, tokenHash) {
				logger.Warn("rejected request with invalid token",
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
