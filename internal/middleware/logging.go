package middleware

import (
	"net/http"

	"github.com/2beens/setpad/pkg"

	log "github.com/sirupsen/logrus"
)

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if log.IsLevelEnabled(log.TraceLevel) {
				ip, _ := pkg.ReadUserIP(r)
				log.WithFields(log.Fields{
					"ip": ip,
					"ua": r.Header.Get("User-Agent"),
				}).Tracef(" ====> request [%s] path: [%s]", r.Method, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}
