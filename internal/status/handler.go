package status

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

const eventMessagesUpsert = "messages.upsert"

// webhookPayload is the subset of the Evolution API event envelope we read.
type webhookPayload struct {
	Event string `json:"event"`
	Data  *struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
		} `json:"key"`
		Message *struct {
			Conversation string `json:"conversation"`
		} `json:"message"`
		PushName    string `json:"pushName"`
		MessageType string `json:"messageType"`
	} `json:"data"`
}

type Handler struct {
	svc Service
	log zerolog.Logger
}

func NewHandler(svc Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "webhook").Logger()}
}

// HandleWebhook accepts Evolution events. Anything that is not a text
// message is acknowledged and dropped.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.log.Warn().Err(err).Msg("read body")
		writeJSON(w, http.StatusOK, map[string]any{"status": true})
		return
	}
	h.log.Debug().RawJSON("payload", rawOrQuoted(body)).Msg("webhook received")

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.Warn().Err(err).Msg("invalid json payload")
		writeJSON(w, http.StatusOK, map[string]any{"status": true})
		return
	}

	if payload.Event != eventMessagesUpsert || payload.Data == nil || payload.Data.Message == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": true})
		return
	}

	msg := &Message{
		ChatID:      payload.Data.Key.RemoteJid,
		Text:        payload.Data.Message.Conversation,
		PushName:    payload.Data.PushName,
		MessageType: payload.Data.MessageType,
	}

	if err := h.svc.HandleIncoming(r.Context(), msg); err != nil {
		h.log.Error().Err(err).Str("chat_id", msg.ChatID).Msg("processing error")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// rawOrQuoted keeps the debug log valid JSON even for garbage bodies.
func rawOrQuoted(b []byte) []byte {
	if json.Valid(b) {
		return b
	}
	q, _ := json.Marshal(string(b))
	return q
}
