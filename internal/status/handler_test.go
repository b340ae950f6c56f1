package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/pare-siga-bridge/internal/storage"
)

func upsertPayload(chatID, text string) string {
	b, _ := json.Marshal(map[string]any{
		"event":    "messages.upsert",
		"instance": "pare-siga",
		"data": map[string]any{
			"key":         map[string]any{"remoteJid": chatID, "fromMe": false, "id": "3EB0"},
			"pushName":    "Motorista",
			"message":     map[string]any{"conversation": text},
			"messageType": "conversation",
		},
	})
	return string(b)
}

func postWebhook(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleWebhook(w, req)
	return w
}

func requireOK(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())
	require.JSONEq(t, `{"status":true}`, w.Body.String())
}

type recordingService struct {
	got []*Message
	err error
}

func (s *recordingService) HandleIncoming(_ context.Context, msg *Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestHandleWebhook_ForwardsMessage(t *testing.T) {
	svc := &recordingService{}
	h := NewHandler(svc, zerolog.Nop())

	w := postWebhook(t, h, upsertPayload(groupID, "Goioerê fechado"))
	requireOK(t, w)

	require.Len(t, svc.got, 1)
	require.Equal(t, &Message{
		ChatID:      groupID,
		Text:        "Goioerê fechado",
		PushName:    "Motorista",
		MessageType: "conversation",
	}, svc.got[0])
}

func TestHandleWebhook_MalformedIsNoop(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"event":`,
		"empty body":     ``,
		"missing data":   `{"event":"messages.upsert"}`,
		"other event":    `{"event":"connection.update","data":{"key":{"remoteJid":"x"},"message":{"conversation":"fechado"}}}`,
		"no message":     `{"event":"messages.upsert","data":{"key":{"remoteJid":"x"},"messageType":"imageMessage"}}`,
		"wrong types":    `{"event":42,"data":"nope"}`,
		"array envelope": `[]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &recordingService{}
			h := NewHandler(svc, zerolog.Nop())

			w := postWebhook(t, h, body)
			requireOK(t, w)
			require.Empty(t, svc.got)
		})
	}
}

func TestHandleWebhook_ServiceErrorIs500(t *testing.T) {
	svc := &recordingService{err: errors.New("evolution api error: 502 Bad Gateway body=")}
	h := NewHandler(svc, zerolog.Nop())

	w := postWebhook(t, h, upsertPayload(groupID, "fechado"))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "evolution api error: 502 Bad Gateway body=", resp["error"])
}

// End to end through SQLite and a fake gateway.
func TestHandleWebhook_Flow(t *testing.T) {
	db, dialect, err := storage.Open(context.Background(), storage.Options{
		Path: filepath.Join(t.TempDir(), "status.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewRepo(db, dialect)
	require.NoError(t, repo.Migrate(context.Background()))

	var sent []sendTextRequest
	gatewayStatus := http.StatusCreated
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendTextRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sent = append(sent, req)
		w.WriteHeader(gatewayStatus)
	}))
	defer gw.Close()

	out := NewEvolutionOutbound(EvolutionConfig{BaseURL: gw.URL, Instance: "pare-siga", APIKey: "k"}, zerolog.Nop())
	svc := NewService(repo, out, Rules{
		SideA: goio, SideB: center, ClosedKeyword: "fechado", StatusKeyword: "status",
		AllowedChats: []string{groupID, groupTestID},
	}, zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop())
	ctx := context.Background()

	// Foreign chat: nothing happens.
	requireOK(t, postWebhook(t, h, upsertPayload("5544@s.whatsapp.net", "Goioerê fechado")))
	require.Empty(t, sent)
	recs, err := repo.History(ctx, goio, 10)
	require.NoError(t, err)
	require.Empty(t, recs)

	// Close Goioerê.
	requireOK(t, postWebhook(t, h, upsertPayload(groupID, "Goioerê fechado")))
	require.Len(t, sent, 1)
	require.Equal(t, groupID, sent[0].Number)
	require.Contains(t, sent[0].Text, "Goioerê: FECHADO")
	require.Contains(t, sent[0].Text, "Quarto Centenário: LIBERADO")

	st, err := repo.LatestStatus(ctx, goio)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, st)

	// Fallback closes the other side.
	requireOK(t, postWebhook(t, h, upsertPayload(groupTestID, "fechado")))
	st, err = repo.LatestStatus(ctx, center)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, st)
	st, err = repo.LatestStatus(ctx, goio)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, st)

	// Status query reads, never writes.
	before, err := repo.History(ctx, goio, 100)
	require.NoError(t, err)
	requireOK(t, postWebhook(t, h, upsertPayload(groupID, "qual o status?")))
	after, err := repo.History(ctx, goio, 100)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	require.Len(t, sent, 3)
	require.Contains(t, sent[2].Text, "🔴 Quarto Centenário: FECHADO")
	require.Contains(t, sent[2].Text, "🟢 Goioerê: LIBERADO")

	// Gateway down: 500, writes stay.
	gatewayStatus = http.StatusBadGateway
	w := postWebhook(t, h, upsertPayload(groupID, "Goioerê fechado"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "502")
	st, err = repo.LatestStatus(ctx, goio)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, st)
}
