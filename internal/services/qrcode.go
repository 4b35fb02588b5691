package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

var ErrBadQRPayload = errors.New("unrecognized QR payload")

// QRPayload is the structured content encoded into a patient's QR code. The
// scanner posts the decoded text back verbatim, so the payload must stay
// self-describing JSON.
type QRPayload struct {
	HistoryID string    `json:"historyId"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// GeneratePatientQR encodes the payload as a 256px PNG and returns it
// base64-encoded, ready for embedding in an <img> tag or an email.
func GeneratePatientQR(p QRPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// ParseQRPayload decodes the JSON text a client scanner read out of a
// patient QR code.
func ParseQRPayload(data string) (QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return QRPayload{}, ErrBadQRPayload
	}
	if p.HistoryID == "" && p.UserID == "" && p.Email == "" {
		return QRPayload{}, ErrBadQRPayload
	}
	return p, nil
}
