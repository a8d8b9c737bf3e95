package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/database"
)

// OrgHeader carries the tenant identifier. The gateway in front of this
// service authenticates the caller and injects the header.
const OrgHeader = "X-Org-ID"

// OrgScope acquires an org-scoped database connection for each request
// and stores it on the request context. The connection is released when
// the handler returns.
func OrgScope(provider *database.OrgScopeProvider, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(OrgHeader)
			orgID, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "missing or invalid "+OrgHeader+" header", http.StatusBadRequest)
				return
			}

			ctx, cleanup, err := provider.WithOrgScope(r.Context(), orgID)
			if err != nil {
				if logger != nil {
					logger.Error("Failed to acquire org scope", zap.Error(err))
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			defer cleanup()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
