package server

import (
	"net/http"

	"github.com/caldera-labs/resolvd/internal/model"
)

// statusForKind maps the error taxonomy onto HTTP statuses. Unsatisfiable is
// a client fault (the constraints cannot hold); resolver faults are upstream
// errors the client may retry.
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindUnsatisfiable:
		return http.StatusUnprocessableEntity
	case model.KindNotFound, model.KindToolNotFound:
		return http.StatusNotFound
	case model.KindNotReady:
		return http.StatusConflict
	case model.KindStaleReference:
		return http.StatusConflict
	case model.KindResolverTimeout:
		return http.StatusGatewayTimeout
	case model.KindResolverUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeKindError renders a typed error with its mapped status. Untyped errors
// come out as 500s with the internal kind.
func writeKindError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	msg := err.Error()
	if kind == model.KindInternal {
		// Don't leak internals to the client.
		msg = "internal server error"
	}
	writeError(w, r, statusForKind(kind), string(kind), msg)
}
