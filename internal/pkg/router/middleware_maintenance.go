package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpreset/internal/pkg/config"
)

// middlewareMaintenance blocks the routes listed in app.maintenance.endpoints.
// The list is read per request so a config reload applies without restart.
func middlewareMaintenance(cfg config.Config) Middleware {
	blocked := func(route string) bool {
		if cfg == nil {
			return false
		}
		for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
			if strings.TrimSpace(endpoint) == route {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if blocked(matchedRoutePath(r)) {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
