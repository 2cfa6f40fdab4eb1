package backend

import (
	"context"
	"fmt"
)

type DraftRequest struct {
	PatientName       string         `json:"patient_name"`
	PatientAge        int            `json:"patient_age"`
	Symptom           string         `json:"symptom"`
	AdditionalContext string         `json:"additional_context"`
	PatientProfile    map[string]any `json:"patient_profile"`
}

type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type draftResponse struct {
	Status  string `json:"status"`
	Draft   *Draft `json:"draft"`
	Message string `json:"message"`
}

func (c *Client) GenerateDraft(ctx context.Context, req DraftRequest) (Draft, error) {
	if req.PatientProfile == nil {
		req.PatientProfile = map[string]any{}
	}
	var resp draftResponse
	if err := c.post(ctx, "/api/generate-email-draft", req, &resp); err != nil {
		return Draft{}, err
	}
	if err := checkStatus("/api/generate-email-draft", resp.Status, resp.Message); err != nil {
		return Draft{}, err
	}
	if resp.Draft == nil {
		return Draft{}, fmt.Errorf("%w: /api/generate-email-draft: missing draft", ErrMalformed)
	}
	return *resp.Draft, nil
}

type sendEmailRequest struct {
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	PatientEmail string `json:"patient_email,omitempty"`
}

type sendEmailResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) SendEmail(ctx context.Context, subject, body, patientEmail string) error {
	var resp sendEmailResponse
	req := sendEmailRequest{Subject: subject, Body: body, PatientEmail: patientEmail}
	if err := c.post(ctx, "/api/send-email", req, &resp); err != nil {
		return err
	}
	msg := resp.Error
	if msg == "" {
		msg = resp.Message
	}
	return checkStatus("/api/send-email", resp.Status, msg)
}
