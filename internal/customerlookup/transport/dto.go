package transport

import "time"

// LookupRequest is the body of POST /api/customers/lookup.
type LookupRequest struct {
	Phone  string `json:"phone" validate:"omitempty,max=32"`
	Email  string `json:"email" validate:"omitempty,email"`
	Source string `json:"source" validate:"omitempty,oneof=xlsx-only servicetitan-only hybrid-prefer-xlsx hybrid-prefer-servicetitan"`
}

// LookupResponse exposes only the best match to the public site.
type LookupResponse struct {
	Found      bool    `json:"found"`
	CustomerID *int64  `json:"customerId,omitempty"`
	Name       string  `json:"name,omitempty"`
	Source     string  `json:"source,omitempty"`
	Score      int     `json:"score,omitempty"`
	Address    *string `json:"address,omitempty"`
}

type ArchiveItem struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type ArchiveListResponse struct {
	Items []ArchiveItem `json:"items"`
}

type ReimportRequest struct {
	Key string `json:"key" validate:"required,startswith=customer-imports/"`
}
