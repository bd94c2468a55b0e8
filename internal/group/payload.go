package group

import (
	"encoding/json"
	"errors"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPayload = errors.New("invalid QR payload")

// Payload is the JSON object embedded in a scannable QR code. All fields
// are strings on the wire; a table QR carries bar and table only, a
// group QR additionally carries the group and its creator.
type Payload struct {
	BarID         string `json:"bar_id"`
	TableID       string `json:"table_id"`
	UserID        string `json:"user_id,omitempty"`
	GroupID       string `json:"group_id,omitempty"`
	OrderTotalID  string `json:"orderTotal_id,omitempty"`
	CreatorUserID string `json:"creator_user_id,omitempty"`
}

// ParsePayload decodes scanned QR data. Bar and table are the minimum a
// payload must carry to route anywhere.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, ErrInvalidPayload
	}
	if p.BarID == "" || p.TableID == "" {
		return Payload{}, ErrInvalidPayload
	}
	return p, nil
}

func (p Payload) HasGroup() bool { return p.GroupID != "" }

func (p Payload) Encode() ([]byte, error) { return json.Marshal(p) }

// QRPNG renders the payload as a scannable PNG.
func QRPNG(p Payload, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	b, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(b), qrcode.Medium, size)
}
