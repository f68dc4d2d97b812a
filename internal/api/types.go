package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is a server-assigned identifier. The server may send it as a JSON
// string or a JSON number; both decode to the same text.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// RegisterKeyRequest is the register-key request body.
type RegisterKeyRequest struct {
	PublicKey string `json:"publicKey"`
	// EncryptedPrivateKey is the text form of a wrapped private key. The
	// server replaces its stored copy on every registration, so an empty
	// value clears it.
	EncryptedPrivateKey string `json:"encryptedPrivateKey,omitempty"`
}

// User is one row of the get-users response.
type User struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	PublicKey string `json:"public_key"`
}

// SendMessageRequest is the send-message request body.
type SendMessageRequest struct {
	RecipientID        string `json:"recipientId"`
	Ciphertext         string `json:"ciphertext"`
	Nonce              string `json:"nonce"`
	EphemeralPublicKey string `json:"ephemeralPublicKey"`
}

// MessageRow is one row of the get-messages response.
type MessageRow struct {
	ID                 ID        `json:"id"`
	SenderID           string    `json:"sender_id"`
	RecipientID        string    `json:"recipient_id"`
	Ciphertext         string    `json:"ciphertext"`
	Nonce              string    `json:"nonce"`
	EphemeralPublicKey string    `json:"ephemeral_public_key"`
	CreatedAt          time.Time `json:"created_at"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
