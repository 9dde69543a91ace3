package servicetitan

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
)

func activeOnly() url.Values {
	q := url.Values{}
	q.Set("active", "True")
	return q
}

// GetCampaigns lists active marketing campaigns.
func (c *Client) GetCampaigns(ctx context.Context) ([]Campaign, error) {
	return listAll[Campaign](ctx, c, c.tenantPath("marketing", "campaigns"), activeOnly())
}

// GetJobTypes lists active job types.
func (c *Client) GetJobTypes(ctx context.Context) ([]JobType, error) {
	return listAll[JobType](ctx, c, c.tenantPath("jpm", "job-types"), activeOnly())
}

// GetBusinessUnits lists active business units.
func (c *Client) GetBusinessUnits(ctx context.Context) ([]BusinessUnit, error) {
	return listAll[BusinessUnit](ctx, c, c.tenantPath("settings", "business-units"), activeOnly())
}

// GetTechnicians lists active technicians.
func (c *Client) GetTechnicians(ctx context.Context) ([]Technician, error) {
	return listAll[Technician](ctx, c, c.tenantPath("settings", "technicians"), activeOnly())
}

// FindJobTypeByName resolves a free-text service name to a job type. Exact
// case-insensitive matches win over containment in either direction. A nil
// result with no error means nothing matched.
func (c *Client) FindJobTypeByName(ctx context.Context, name string) (*JobType, error) {
	jobTypes, err := c.GetJobTypes(ctx)
	if err != nil {
		return nil, err
	}
	return MatchJobType(jobTypes, name), nil
}

// MatchJobType applies the fuzzy job type match to an already fetched list.
func MatchJobType(jobTypes []JobType, name string) *JobType {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	for i := range jobTypes {
		if strings.ToLower(strings.TrimSpace(jobTypes[i].Name)) == needle {
			return &jobTypes[i]
		}
	}
	for i := range jobTypes {
		hay := strings.ToLower(strings.TrimSpace(jobTypes[i].Name))
		if hay == "" {
			continue
		}
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return &jobTypes[i]
		}
	}
	return nil
}

// ReferenceData is the set of lookups an operator needs when wiring tracking
// numbers and booking defaults.
type ReferenceData struct {
	Campaigns     []Campaign     `json:"campaigns"`
	JobTypes      []JobType      `json:"jobTypes"`
	BusinessUnits []BusinessUnit `json:"businessUnits"`
	Technicians   []Technician   `json:"technicians"`
}

// GetReferenceData fetches campaigns, job types, business units and
// technicians concurrently.
func (c *Client) GetReferenceData(ctx context.Context) (*ReferenceData, error) {
	var out ReferenceData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { out.Campaigns, err = c.GetCampaigns(gctx); return })
	g.Go(func() (err error) { out.JobTypes, err = c.GetJobTypes(gctx); return })
	g.Go(func() (err error) { out.BusinessUnits, err = c.GetBusinessUnits(gctx); return })
	g.Go(func() (err error) { out.Technicians, err = c.GetTechnicians(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
