package transport

import (
	"time"

	"plumbing_backend/internal/reviews/repository"

	"github.com/google/uuid"
)

type ReviewResponse struct {
	ID         string     `json:"id"`
	AuthorName string     `json:"authorName"`
	Rating     int        `json:"rating"`
	Body       string     `json:"body"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	CustomerID *int64     `json:"customerId,omitempty"`
}

type ReviewListResponse struct {
	Items []ReviewResponse `json:"items"`
}

func FromReview(r repository.Review) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		AuthorName: r.AuthorName,
		Rating:     r.Rating,
		Body:       r.Body,
		ReviewedAt: r.ReviewedAt,
		CustomerID: r.CustomerID,
	}
}

type LinkRequest struct {
	Phone string `json:"phone" validate:"required_without=Email,max=30"`
	Email string `json:"email" validate:"required_without=Phone,omitempty,email"`
}

type LinkResponse struct {
	Review     ReviewResponse `json:"review"`
	CustomerID int64          `json:"customerId"`
	Source     string         `json:"source"`
	CampaignID uuid.UUID      `json:"campaignId"`
	Created    bool           `json:"created"`
}
