package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
	"github.com/lumacast/pairing-server-go/internal/model"
	"github.com/lumacast/pairing-server-go/internal/service"
	"github.com/lumacast/pairing-server-go/internal/util"
)

// PairingHandler is the poll binding of the pairing protocol: plain
// request/response, the receiver polls GetStatus on an interval. The
// push binding (EventsHandler) sits on the same service, so both
// expose identical semantics.
type PairingHandler struct {
	pairingService *service.PairingService
	eventsHandler  *EventsHandler
}

func NewPairingHandler(pairingService *service.PairingService, eventsHandler *EventsHandler) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
		eventsHandler:  eventsHandler,
	}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{code}", h.GetStatus)
	r.Post("/sessions/{code}/join", h.Join)
	r.Post("/sessions/{code}/credentials", h.SubmitCredentials)
	if h.eventsHandler != nil {
		r.Get("/sessions/{code}/events", h.eventsHandler.ServeHTTP)
	}

	return r
}

// POST /v1/pair/sessions
// Receiver (TV) mints a new pairing session and displays the code.
func (h *PairingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.pairingService.CreateSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GET /v1/pair/sessions/{code}
// Receiver polls until status is completed or the code expires.
func (h *PairingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	code, ok := h.code(w, r)
	if !ok {
		return
	}

	result, err := h.pairingService.GetStatus(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/pair/sessions/{code}/join
// Sender (phone) attaches to the session the TV is displaying.
func (h *PairingHandler) Join(w http.ResponseWriter, r *http.Request) {
	code, ok := h.code(w, r)
	if !ok {
		return
	}

	if err := h.pairingService.Join(r.Context(), code); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// POST /v1/pair/sessions/{code}/credentials
// Sender delivers the credentials; the session completes.
func (h *PairingHandler) SubmitCredentials(w http.ResponseWriter, r *http.Request) {
	code, ok := h.code(w, r)
	if !ok {
		return
	}

	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	if err := h.pairingService.SubmitCredentials(r.Context(), code, creds); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PairingHandler) code(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := util.NormalizeCode(chi.URLParam(r, "code"))
	if !util.IsValidCode(code) {
		writeError(w, apperrors.NotFound("pairing session"))
		return "", false
	}
	return code, true
}
