package server

import (
	"net/http"

	"github.com/caldera-labs/resolvd/internal/model"
)

// HandleCreateSuite handles POST /api/v1/suites.
func (h *Handlers) HandleCreateSuite(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSuiteRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}

	s, err := h.suites.Create(req.Name, req.Description)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, model.NewSuiteView(s))
}

// HandleListSuites handles GET /api/v1/suites.
func (h *Handlers) HandleListSuites(w http.ResponseWriter, r *http.Request) {
	suites := h.suites.List()
	views := make([]model.SuiteView, len(suites))
	for i, s := range suites {
		views[i] = model.NewSuiteView(s)
	}
	writeJSON(w, r, http.StatusOK, views)
}

// HandleGetSuite handles GET /api/v1/suites/{id}.
func (h *Handlers) HandleGetSuite(w http.ResponseWriter, r *http.Request) {
	s, err := h.suites.Get(r.PathValue("id"))
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewSuiteView(s))
}

// HandleDeleteSuite handles DELETE /api/v1/suites/{id}.
func (h *Handlers) HandleDeleteSuite(w http.ResponseWriter, r *http.Request) {
	if err := h.suites.Delete(r.PathValue("id")); err != nil {
		writeKindError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddSuiteContext handles POST /api/v1/suites/{id}/contexts.
func (h *Handlers) HandleAddSuiteContext(w http.ResponseWriter, r *http.Request) {
	var req model.AddSuiteContextRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}
	if req.ContextID == "" {
		writeKindError(w, r, model.Errf(model.KindValidation, "context_id is required"))
		return
	}

	s, err := h.suites.AddContext(r.PathValue("id"), req.ContextID)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewSuiteView(s))
}

// HandleAliasTool handles POST /api/v1/suites/{id}/tools/alias.
func (h *Handlers) HandleAliasTool(w http.ResponseWriter, r *http.Request) {
	var req model.AliasToolRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}
	if req.Tool == "" {
		writeKindError(w, r, model.Errf(model.KindValidation, "tool is required"))
		return
	}

	s, err := h.suites.AliasTool(r.PathValue("id"), req.Tool, req.Alias)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewSuiteView(s))
}

// HandleSuiteTools handles GET /api/v1/suites/{id}/tools.
func (h *Handlers) HandleSuiteTools(w http.ResponseWriter, r *http.Request) {
	tools, conflicts, err := h.suites.ListTools(r.PathValue("id"))
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	if tools == nil {
		tools = []model.ToolStatus{}
	}
	if conflicts == nil {
		conflicts = []string{}
	}
	writeJSON(w, r, http.StatusOK, model.SuiteToolsResponse{
		Tools:      tools,
		TotalTools: len(tools),
		Conflicts:  conflicts,
	})
}

// HandleSaveSuite handles POST /api/v1/suites/{id}/save.
func (h *Handlers) HandleSaveSuite(w http.ResponseWriter, r *http.Request) {
	var req model.SaveSuiteRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}

	s, err := h.suites.Save(r.PathValue("id"), req.Path)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewSuiteView(s))
}

// HandleLoadSuite handles POST /api/v1/suites/load.
func (h *Handlers) HandleLoadSuite(w http.ResponseWriter, r *http.Request) {
	var req model.LoadSuiteRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}
	if req.Path == "" {
		writeKindError(w, r, model.Errf(model.KindValidation, "path is required"))
		return
	}

	s, err := h.suites.Load(r.Context(), req.Path)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, model.NewSuiteView(s))
}
