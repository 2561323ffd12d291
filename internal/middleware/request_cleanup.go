package middleware

import (
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// maxDrainBytes bounds how much of an unread body is drained. Past that the
// connection is not worth keeping and the body is only closed.
const maxDrainBytes = 256 << 10

// DrainAndCloseRequest drains whatever the handler left unread in the request
// body and closes it, so the connection can be reused.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil {
				return
			}
			if n, err := io.CopyN(io.Discard, r.Body, maxDrainBytes); err == nil {
				log.Tracef("request body for [%s] not drained after %d bytes", r.URL.Path, n)
			}
			_ = r.Body.Close()
		})
	}
}
