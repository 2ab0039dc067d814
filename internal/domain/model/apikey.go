package model

import "time"

// APIKey is an issued key that grants access to the summarizer endpoint.
type APIKey struct {
	ID        int64
	Name      string
	Value     string
	CreatedAt time.Time
}
