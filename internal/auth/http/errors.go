package http

import (
	"net/http"

	"github.com/memberhub/memberhub/internal/auth/service"
	"github.com/memberhub/memberhub/pkg/httpx"
	"github.com/memberhub/memberhub/pkg/slogx"
)

// writeServiceError renders err as an ErrorBody. Anything that is not a
// *service.Error is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e := service.AsError(err)
	if e.Status >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
	}
	httpx.WriteError(w, e.Status, e.Code, e.Message)
}
