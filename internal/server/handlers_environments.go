package server

import (
	"net/http"
	"time"

	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/platform"
)

// HandleResolve handles POST /api/v1/environments/resolve. An identical
// request reuses the live context; an unsatisfiable one comes back 200 with a
// failed context so the caller can inspect the reason.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req model.ResolveRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}

	desc, err := h.requestPlatform(w, r, req.Platform)
	if err != nil {
		writeKindError(w, r, err)
		return
	}

	ctx := platform.WithDescriptor(r.Context(), desc)
	c, err := h.store.Create(ctx, req.Packages, desc)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewContextView(c))
}

// HandleListEnvironments handles GET /api/v1/environments.
func (h *Handlers) HandleListEnvironments(w http.ResponseWriter, r *http.Request) {
	contexts := h.store.List()
	views := make([]model.ContextView, len(contexts))
	for i, c := range contexts {
		views[i] = model.NewContextView(c)
	}
	writeJSON(w, r, http.StatusOK, views)
}

// HandleGetEnvironment handles GET /api/v1/environments/{id}.
func (h *Handlers) HandleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewContextView(c))
}

// HandleDeleteEnvironment handles DELETE /api/v1/environments/{id}.
func (h *Handlers) HandleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id")); err != nil {
		writeKindError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExecute handles POST /api/v1/environments/{id}/execute.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req model.ExecuteRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	res, err := h.exec.Execute(r.Context(), r.PathValue("id"), req.Command, req.Args, timeout)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewExecuteResponse(res))
}
