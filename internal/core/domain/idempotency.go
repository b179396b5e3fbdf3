package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the outcome of a keyed purchase so a replay returns it unchanged.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "user_id:client_key"
	PurchaseID   uuid.UUID `json:"purchase_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a client-supplied key to its user.
func BuildIdempotencyKey(userID uuid.UUID, clientKey string) string {
	return userID.String() + ":" + clientKey
}
