package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

type chatRequest struct {
	Message string  `json:"message"`
	UserID  *string `json:"user_id"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// Chat sends one user utterance to the assistant and returns its reply. An
// empty userID is sent as null.
func (c *Client) Chat(ctx context.Context, message, userID string) (string, error) {
	req := chatRequest{Message: message}
	if userID != "" {
		req.UserID = &userID
	}
	var resp chatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", fmt.Errorf("%w: /api/chat: missing response field", ErrMalformed)
	}
	return *resp.Response, nil
}

type transcribeRequest struct {
	Audio string `json:"audio"`
}

type transcribeResponse struct {
	Transcription *string `json:"transcription"`
}

// Transcribe uploads audio as a base64 data URL.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req := transcribeRequest{
		Audio: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(audio),
	}
	var resp transcribeResponse
	if err := c.post(ctx, "/api/transcribe", req, &resp); err != nil {
		return "", err
	}
	if resp.Transcription == nil {
		return "", fmt.Errorf("%w: /api/transcribe: missing transcription field", ErrMalformed)
	}
	return *resp.Transcription, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("%w: /api/health: status %q", ErrNotSuccess, resp.Status)
	}
	return nil
}
