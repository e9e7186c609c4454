package middleware

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CORS allows the configured origins. An entry may hold one "*" wildcard,
// e.g. "https://citrea-watch-*.vercel.app" for preview deployments, and a
// bare "*" allows any origin.
func CORS(origins []string, logger *zap.Logger) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         600,
	}
	if logger != nil && logger.Core().Enabled(zapcore.DebugLevel) {
		opts.Logger = zap.NewStdLog(logger.Named("cors"))
	}
	return cors.New(opts).Handler
}
