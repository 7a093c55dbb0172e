package model

import (
	"encoding/json"
	"time"
)

// Service is one curated catalog entry imported from the SMM reseller.
type Service struct {
	ID         string
	Platform   string
	Category   string
	Name       string
	Price      *float64
	Raw        json.RawMessage
	ImportedAt time.Time
}

// Option converts a catalog service into the snapshot form stored in sessions.
func (s Service) Option() ServiceOption {
	return ServiceOption{ID: s.ID, Name: s.Name, Price: s.Price, Raw: s.Raw}
}
