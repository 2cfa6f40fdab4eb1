package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// PatientID derives the profile key for a signed-in user.
func PatientID(userID string) string {
	return "patient_" + userID
}

// Number accepts both JSON numbers and numeric strings; anything else
// decodes to zero.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

type Profile struct {
	PatientID      string `json:"patient_id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Age            Number `json:"age"`
	Sex            string `json:"sex"`
	HeightCm       Number `json:"height_cm"`
	WeightKg       Number `json:"weight_kg"`
	Allergies      string `json:"allergies"`
	Medications    string `json:"medications"`
	MedicalHistory string `json:"medical_history"`

	// Raw is the decoded document, forwarded untouched to draft generation.
	Raw map[string]any `json:"-"`
}

func (p Profile) Empty() bool {
	return len(p.Raw) == 0
}

// ParseProfile decodes the JSON document stored for a patient. Malformed
// documents and "not found" markers yield an empty profile.
func ParseProfile(doc string) Profile {
	var raw map[string]any
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return Profile{}
	}
	if status, _ := raw["status"].(string); status == "not_found" || status == "error" {
		return Profile{}
	}
	var p Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return Profile{}
	}
	p.Raw = raw
	return p
}

type profileRequest struct {
	PatientID string `json:"patient_id"`
}

type profileResponse struct {
	Status  string `json:"status"`
	Profile string `json:"profile"`
	Message string `json:"message"`
}

func (c *Client) GetProfile(ctx context.Context, patientID string) (Profile, error) {
	var resp profileResponse
	if err := c.post(ctx, "/api/get-profile", profileRequest{PatientID: patientID}, &resp); err != nil {
		return Profile{}, err
	}
	if err := checkStatus("/api/get-profile", resp.Status, resp.Message); err != nil {
		return Profile{}, err
	}
	return ParseProfile(resp.Profile), nil
}
