package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"arith-live-service/internal/app"
	"arith-live-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"
)

// PollInterval is the cadence pull-transport clients are told to use.
const PollInterval = 2000

const maxBodyBytes = 1 << 20

// RESTHandler is the pull transport: plain request/response mutations plus a
// read-only snapshot endpoint that viewers without a socket poll.
type RESTHandler struct {
	service   *app.LiveService
	identity  IdentityFunc
	snapshots singleflight.Group
}

func NewRESTHandler(service *app.LiveService, identity IdentityFunc) *RESTHandler {
	if identity == nil {
		identity = func(*http.Request) string { return "" }
	}
	return &RESTHandler{service: service, identity: identity}
}

// Routes registers the session API.
func (h *RESTHandler) Routes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/code/{code}", h.handleGetByCode)
		r.Get("/{sessionID}", h.handleGet)
		r.Post("/{sessionID}/participants", h.handleJoin)
		r.Get("/{sessionID}/participants/{participantID}", h.handleParticipant)
		r.Delete("/{sessionID}/participants/{participantID}", h.handleLeave)
		r.Post("/{sessionID}/start", h.handleStart)
		r.Post("/{sessionID}/answers", h.handleAnswer)
		r.Post("/{sessionID}/abort", h.handleAbort)
	})
}

type createRequest struct {
	Settings       domain.Settings `json:"settings"`
	PriorSessionID string          `json:"priorSessionId"`
}

type createResponse struct {
	SessionID string             `json:"sessionId"`
	Code      string             `json:"code"`
	Session   domain.SessionView `json:"session"`
}

type joinRequest struct {
	Name       string `json:"name"`
	ExternalID string `json:"externalId"`
}

type joinResponse struct {
	Participant domain.Participant `json:"participant"`
	Session     domain.SessionView `json:"session"`
}

type answerRequest struct {
	ParticipantID string  `json:"participantId"`
	ProblemID     string  `json:"problemId"`
	Value         float64 `json:"value"`
	ElapsedMs     int64   `json:"elapsedMs"`
}

type snapshotResponse struct {
	Session        domain.SessionView `json:"session"`
	PollIntervalMs int                `json:"pollIntervalMs"`
}

func (h *RESTHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.service.Create(r.Context(), req.Settings, req.PriorSessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{SessionID: view.ID, Code: view.Code, Session: view})
}

func (h *RESTHandler) handleGetByCode(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Session: view, PollIntervalMs: PollInterval})
}

// handleGet is the poll endpoint. Concurrent polls of the same session share one
// snapshot build; it never mutates the session. A poll that joins a build already in
// flight may be one mutation behind; the next poll catches up.
func (h *RESTHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	body, err, _ := h.snapshots.Do(sessionID, func() (interface{}, error) {
		view, err := h.service.Get(r.Context(), sessionID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snapshotResponse{Session: view, PollIntervalMs: PollInterval})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.([]byte))
}

func (h *RESTHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	external := req.ExternalID
	if external == "" {
		external = h.identity(r)
	}
	p, view, err := h.service.Join(r.Context(), chi.URLParam(r, "sessionID"), req.Name, external)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinResponse{Participant: p, Session: view})
}

func (h *RESTHandler) handleParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Participant(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "participantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *RESTHandler) handleLeave(w http.ResponseWriter, r *http.Request) {
	h.service.Leave(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "participantID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Start(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Session: view, PollIntervalMs: PollInterval})
}

func (h *RESTHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), req.ParticipantID, req.ProblemID, req.Value, req.ElapsedMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RESTHandler) handleAbort(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Abort(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Session: view, PollIntervalMs: PollInterval})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body", Code: "invalid_input"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, _ := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, newErrorPayload(err))
}
