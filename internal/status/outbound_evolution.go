package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DeliveryError is returned when the gateway answers with a non-2xx status.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("evolution api error: %d %s body=%s",
		e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

type EvolutionConfig struct {
	BaseURL  string
	Instance string
	APIKey   string
	Delay    int    // typing delay in ms shown before the message
	Presence string // "composing", "recording", ...
	Timeout  time.Duration
}

type EvolutionOutbound struct {
	endpoint string
	apiKey   string
	delay    int
	presence string
	client   *http.Client
	log      zerolog.Logger
}

func NewEvolutionOutbound(cfg EvolutionConfig, log zerolog.Logger) *EvolutionOutbound {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EvolutionOutbound{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/message/sendText/" + url.PathEscape(cfg.Instance),
		apiKey:   cfg.APIKey,
		delay:    cfg.Delay,
		presence: cfg.Presence,
		client:   &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "evolution").Logger(),
	}
}

type sendTextOptions struct {
	Delay    int    `json:"delay"`
	Presence string `json:"presence"`
}

type sendTextRequest struct {
	Number  string          `json:"number"`
	Text    string          `json:"text"`
	Options sendTextOptions `json:"options"`
}

func (c *EvolutionOutbound) SendText(ctx context.Context, number string, text string) error {
	b, err := json.Marshal(sendTextRequest{
		Number:  number,
		Text:    text,
		Options: sendTextOptions{Delay: c.delay, Presence: c.presence},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.log.Info().Str("number", number).Int("status", resp.StatusCode).Msg("message sent")
	return nil
}
