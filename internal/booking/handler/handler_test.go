package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plumbing_backend/internal/booking/repository"
	"plumbing_backend/internal/booking/service"
	"plumbing_backend/internal/booking/transport"
	"plumbing_backend/internal/events"
	referralservice "plumbing_backend/internal/referrals/service"
	"plumbing_backend/internal/servicetitan"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

type noReferrals struct{}

func (noReferrals) ConvertForBooking(context.Context, referralservice.ConversionInput) referralservice.ConversionOutcome {
	return referralservice.ConversionOutcome{}
}

type requestStore struct {
	created []uuid.UUID
	failed  map[uuid.UUID]string
}

func newRequestStore() *requestStore {
	return &requestStore{failed: map[uuid.UUID]string{}}
}

func (s *requestStore) CreateRequest(_ context.Context, req repository.Request) error {
	s.created = append(s.created, req.ID)
	return nil
}
func (s *requestStore) MarkConfirmed(context.Context, uuid.UUID, repository.Confirmation) error {
	return nil
}
func (s *requestStore) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	s.failed[id] = msg
	return nil
}
func (s *requestStore) List(context.Context, string, int, int) ([]repository.Request, error) {
	return nil, nil
}
func (s *requestStore) CampaignForSource(context.Context, string) (*int64, error) { return nil, nil }
func (s *requestStore) ListTrackingNumbers(context.Context) ([]repository.TrackingNumber, error) {
	return nil, nil
}
func (s *requestStore) UpsertTrackingNumber(_ context.Context, t repository.TrackingNumber) (repository.TrackingNumber, error) {
	return t, nil
}

// campaignlessCRM has no campaign the booking can attach to.
type campaignlessCRM struct{}

func (campaignlessCRM) GetCampaigns(context.Context) ([]servicetitan.Campaign, error) {
	return []servicetitan.Campaign{{ID: 11, Name: "Yard Signs"}}, nil
}
func (campaignlessCRM) FindJobTypeByName(context.Context, string) (*servicetitan.JobType, error) {
	return &servicetitan.JobType{ID: 21, Name: "Drain Cleaning"}, nil
}
func (campaignlessCRM) GetBusinessUnits(context.Context) ([]servicetitan.BusinessUnit, error) {
	return nil, nil
}
func (campaignlessCRM) GetTechnicians(context.Context) ([]servicetitan.Technician, error) {
	return nil, nil
}
func (campaignlessCRM) EnsureCustomer(context.Context, servicetitan.CustomerInput) (*servicetitan.Customer, error) {
	return &servicetitan.Customer{ID: 501}, nil
}
func (campaignlessCRM) EnsureLocation(_ context.Context, customerID int64, _ string, addr servicetitan.Address) (*servicetitan.Location, error) {
	return &servicetitan.Location{ID: 601, CustomerID: customerID, Address: addr}, nil
}
func (campaignlessCRM) CreateJob(context.Context, servicetitan.CreateJobInput) (*servicetitan.Job, error) {
	return &servicetitan.Job{ID: 9001}, nil
}

func newBookRouter(store *requestStore, crm service.CRM) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(store, crm, noReferrals{}, nopBus{}, logger.Nop())
	h := New(svc, nil, validator.New(), "referral_token")
	router := gin.New()
	router.POST("/api/scheduler/book", h.Book)
	return router
}

func postBooking(t *testing.T, router *gin.Engine, schedule string) (*httptest.ResponseRecorder, transport.BookErrorResponse) {
	t.Helper()
	body := `{"name":"Jamie Booker","phone":"5125550199","address":"12 Elm St","city":"Austin","state":"TX","zip":"78701",` +
		`"requestedService":"drain cleaning",` + schedule + `}`
	req := httptest.NewRequest(http.MethodPost, "/api/scheduler/book", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp transport.BookErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

const arrivalWindow = `"arrivalWindowStart":"2026-04-02T14:00:00Z","arrivalWindowEnd":"2026-04-02T18:00:00Z"`

func TestBookUnpairedSlotIsBadRequest(t *testing.T) {
	store := newRequestStore()
	router := newBookRouter(store, nil)

	rec, resp := postBooking(t, router, arrivalWindow+`,"appointmentStart":"2026-04-02T15:00:00Z"`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Success || !strings.Contains(resp.Error, "provided together") {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if resp.RequestID != nil {
		t.Fatalf("validation errors must not carry a request id, got %s", resp.RequestID)
	}
	if len(store.created) != 0 {
		t.Fatalf("expected no scheduler request row, got %d", len(store.created))
	}
}

func TestBookMissingFieldsIsBadRequest(t *testing.T) {
	router := newBookRouter(newRequestStore(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/scheduler/book", strings.NewReader(`{"name":"Jamie"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Fatalf("expected failure envelope, got %s", rec.Body.String())
	}
}

func TestBookFailuresAfterRecordingAreServerErrors(t *testing.T) {
	tests := []struct {
		name    string
		crm     service.CRM
		wantErr string
	}{
		{name: "crm not configured", crm: nil, wantErr: "ServiceTitan is not configured"},
		{name: "no website campaign", crm: campaignlessCRM{}, wantErr: "No ServiceTitan campaign found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRequestStore()
			router := newBookRouter(store, tt.crm)

			rec, resp := postBooking(t, router, arrivalWindow)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
			}
			if resp.Success || !strings.HasPrefix(resp.Error, tt.wantErr) {
				t.Fatalf("unexpected body: %+v", resp)
			}
			if resp.RequestID == nil {
				t.Fatal("expected requestId in failure body")
			}
			if len(store.created) != 1 || store.created[0] != *resp.RequestID {
				t.Fatalf("expected one recorded request matching %s, got %v", resp.RequestID, store.created)
			}
			if _, ok := store.failed[*resp.RequestID]; !ok {
				t.Fatal("expected request row marked failed")
			}
		})
	}
}
