package server

import (
	"errors"
	"net/http"

	"github.com/siteagent/siteagent/internal/store"
)

// statusCoder is implemented by tool-layer errors that carry an HTTP
// status (validation failures, missing credentials, upstream statuses).
type statusCoder interface {
	HTTPStatus() int
}

// errorStatus maps an error to its response status and code. Unknown
// errors are internal.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "E_NOT_FOUND"
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "E_DUPLICATE"
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		if status == http.StatusBadRequest {
			return status, "E_BAD_REQUEST"
		}
		return status, "E_UPSTREAM"
	}
	return http.StatusInternalServerError, "E_INTERNAL"
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, err.Error())
}
