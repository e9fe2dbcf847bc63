package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
	"github.com/lumacast/pairing-server-go/internal/util"
	"github.com/lumacast/pairing-server-go/internal/xtream"
)

// XtreamHandler proxies the upstream Xtream panel for the TV UI, which
// cannot call the panel from the browser (no CORS headers upstream).
// Credentials ride along on every request; nothing upstream-related is
// stored server-side.
type XtreamHandler struct {
	client *xtream.Client
}

func NewXtreamHandler(client *xtream.Client) *XtreamHandler {
	return &XtreamHandler{client: client}
}

func (h *XtreamHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/categories", h.Categories)
	r.Post("/streams", h.Streams)
	r.Post("/playlist", h.Playlist)

	return r
}

type xtreamRequest struct {
	Host       string `json:"host"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Type       string `json:"type"`
	CategoryID string `json:"categoryId"`
}

func (req *xtreamRequest) validate() (*xtream.Account, string, error) {
	if req.Host == "" {
		return nil, "", apperrors.MissingRequired("host")
	}
	if req.Username == "" {
		return nil, "", apperrors.MissingRequired("username")
	}
	if req.Password == "" {
		return nil, "", apperrors.MissingRequired("password")
	}

	streamType := req.Type
	if streamType == "" {
		streamType = "live"
	}
	if !util.IsValidEnum(streamType, xtream.StreamTypes) {
		return nil, "", apperrors.InvalidInput("type", "must be one of live, vod")
	}

	return &xtream.Account{
		Host:     req.Host,
		Username: req.Username,
		Password: req.Password,
	}, streamType, nil
}

// POST /v1/xtream/categories
func (h *XtreamHandler) Categories(w http.ResponseWriter, r *http.Request) {
	var req xtreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	account, streamType, err := req.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	categories, err := h.client.GetCategories(r.Context(), *account, streamType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// POST /v1/xtream/streams
func (h *XtreamHandler) Streams(w http.ResponseWriter, r *http.Request) {
	var req xtreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	account, streamType, err := req.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	streams, err := h.client.GetStreams(r.Context(), *account, streamType, req.CategoryID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

// POST /v1/xtream/playlist
func (h *XtreamHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlaylistURL string `json:"playlistUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.PlaylistURL == "" {
		writeError(w, apperrors.MissingRequired("playlistUrl"))
		return
	}

	entries, err := xtream.FetchPlaylist(req.PlaylistURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"channels": entries})
}
