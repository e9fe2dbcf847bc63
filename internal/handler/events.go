package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/lumacast/pairing-server-go/internal/config"
	apperrors "github.com/lumacast/pairing-server-go/internal/errors"
	"github.com/lumacast/pairing-server-go/internal/service"
	"github.com/lumacast/pairing-server-go/internal/sse"
	"github.com/lumacast/pairing-server-go/internal/util"
)

// EventsHandler is the push binding: the receiver holds an SSE stream
// open on its code and learns of a joined sender or delivered
// credentials without polling. The opening snapshot carries the current
// status so a receiver that reconnects mid-session resynchronizes
// without having missed events.
type EventsHandler struct {
	broker         *sse.Broker
	pairingService *service.PairingService
}

func NewEventsHandler(broker *sse.Broker, pairingService *service.PairingService) *EventsHandler {
	return &EventsHandler{
		broker:         broker,
		pairingService: pairingService,
	}
}

// GET /v1/pair/sessions/{code}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := util.NormalizeCode(chi.URLParam(r, "code"))
	if !util.IsValidCode(code) {
		writeError(w, apperrors.NotFound("pairing session"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	// Subscribe before reading the snapshot. An event published between
	// the two sits buffered on the client channel and is delivered right
	// after the snapshot; the reverse order drops it, and a receiver on
	// the push binding never polls to recover.
	client := h.broker.Subscribe(code)
	defer h.broker.Unsubscribe(client)

	status, err := h.pairingService.GetStatus(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	defer h.pairingService.ReceiverDisconnect(code)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	log.Info().Str("code", code).Msg("sse connection established")

	if err := h.sendEvent(w, flusher, sse.EventConnected, status); err != nil {
		log.Error().Err(err).Str("code", code).Msg("failed to send snapshot")
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(config.SSEHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("code", code).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("code", code).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("code", code).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
