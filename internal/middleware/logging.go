// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			duration := time.Since(start)
			logger.WithFields(logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": duration,
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// LogPeerConnect logs a relay peer attaching, once the upgrade is accepted
// and the session token has been verified.
func LogPeerConnect(logger *logrus.Logger, remoteAddr string, peer uint64) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"peer":   peer,
	}).Info("Peer connected")
}

// LogPeerDisconnect logs a relay peer detaching.
func LogPeerDisconnect(logger *logrus.Logger, remoteAddr string, peer uint64, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"peer":   peer,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("Peer disconnected")
}
