package huddle

import "time"

// Entity carries the timestamps shared by all persisted huddle entities.
// Embed it in durable types; stores are responsible for keeping UpdatedAt
// current on every write.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity with both timestamps set to now.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}
