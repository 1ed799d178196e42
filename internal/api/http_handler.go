package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/auth"
	"github.com/rpattn/reportvc/internal/domain"
	"github.com/rpattn/reportvc/internal/refinement"
	"github.com/rpattn/reportvc/internal/versioning"
)

// Handler serves the version history, diff, and refinement endpoints.
type Handler struct {
	versions     *versioning.Service
	orchestrator *refinement.Orchestrator
	coordinator  *refinement.Coordinator
}

// NewHandler creates the API handler.
func NewHandler(versions *versioning.Service, orchestrator *refinement.Orchestrator, coordinator *refinement.Coordinator) *Handler {
	return &Handler{
		versions:     versions,
		orchestrator: orchestrator,
		coordinator:  coordinator,
	}
}

// Register mounts the handler's routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs/{runID}/versions", h.handleList)
	mux.HandleFunc("GET /api/runs/{runID}/versions/{version}", h.handleGet)
	mux.HandleFunc("GET /api/runs/{runID}/diff", h.handleCompare)
	mux.HandleFunc("POST /api/runs/{runID}/proposals", h.handlePropose)
	mux.HandleFunc("POST /api/runs/{runID}/revert", h.handleRevert)
	mux.HandleFunc("POST /api/proposals/{handle}/resolve", h.handleResolve)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	summaries, err := h.versions.List(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   runID,
		"versions": summaries,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}
	version, ok := parseVersion(w, r.PathValue("version"))
	if !ok {
		return
	}

	stored, err := h.versions.Get(r.Context(), runID, version)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}
	from, ok := parseVersion(w, r.URL.Query().Get("from"))
	if !ok {
		return
	}
	to, ok := parseVersion(w, r.URL.Query().Get("to"))
	if !ok {
		return
	}

	diffs, err := h.versions.Compare(r.Context(), runID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"from":   from,
		"to":     to,
		"diffs":  diffs,
	})
}

type proposePayload struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	var payload proposePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	proposal, err := h.orchestrator.Propose(r.Context(), runID, payload.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, proposal)
}

type resolvePayload struct {
	Action     string `json:"action"`
	EditedText string `json:"edited_text,omitempty"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	handle, err := uuid.Parse(r.PathValue("handle"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid proposal handle: %v", err), http.StatusBadRequest)
		return
	}

	var payload resolvePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	action := refinement.ResolveAction(strings.ToLower(strings.TrimSpace(payload.Action)))
	resolution, err := h.coordinator.Resolve(r.Context(), handle, action, payload.EditedText)
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]any{
		"action":   resolution.Action,
		"proposal": resolution.Proposal,
	}
	if resolution.NewVersion != nil {
		response["new_version"] = resolution.NewVersion
	}
	writeJSON(w, http.StatusOK, response)
}

type revertPayload struct {
	Version int64 `json:"version"`
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(w, r)
	if !ok {
		return
	}

	var payload revertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Version < 1 {
		http.Error(w, "invalid version number", http.StatusBadRequest)
		return
	}

	summary, err := h.versions.Revert(r.Context(), runID, payload.Version, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

func actorFrom(r *http.Request) string {
	return auth.ActorFromContext(r.Context())
}

func parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(r.PathValue("runID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run id: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return runID, true
}

func parseVersion(w http.ResponseWriter, raw string) (int64, bool) {
	version, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || version < 1 {
		http.Error(w, "invalid version number", http.StatusBadRequest)
		return 0, false
	}
	return version, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrStaleProposal), errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrGeneration):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
