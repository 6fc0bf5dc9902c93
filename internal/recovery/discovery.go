package recovery

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/pagination"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

type WebinarSource interface {
	ListWebinars(ctx context.Context, organizationID string, pageSize int, nextToken string) (zoom.Page[zoom.WebinarData], error)
}

type WebinarStore interface {
	UpsertDiscoveredWebinars(ctx context.Context, webinars []entities.Webinar) (int, error)
	TouchConnection(ctx context.Context, organizationID string, at time.Time) error
}

// Discovery reports what a discovery walk found.
type Discovery struct {
	Found     int  `json:"found"`
	Stored    int  `json:"stored"`
	Pages     int  `json:"pages"`
	Truncated bool `json:"truncated"`
}

// Discoverer imports an organization's upstream webinar list, so recovery
// has webinars to work on.
type Discoverer struct {
	source     WebinarSource
	store      WebinarStore
	walker     *pagination.Walker
	maxResumes int
	now        func() time.Time
}

func NewDiscoverer(source WebinarSource, store WebinarStore, walker *pagination.Walker) *Discoverer {
	return &Discoverer{source: source, store: store, walker: walker, maxResumes: DefaultMaxResumes, now: time.Now}
}

// Discover walks the webinar list and upserts every webinar by upstream id.
func (d *Discoverer) Discover(ctx context.Context, organizationID string) (Discovery, error) {
	var out Discovery
	if organizationID == "" {
		return out, ErrOrganizationRequired
	}

	fetch := func(ctx context.Context, pageSize int, token string) (pagination.Page[zoom.WebinarData], error) {
		page, err := d.source.ListWebinars(ctx, organizationID, pageSize, token)
		if err != nil {
			return pagination.Page[zoom.WebinarData]{}, err
		}
		return pagination.Page[zoom.WebinarData]{Records: page.Records, NextToken: page.NextPageToken}, nil
	}

	token := ""
	for segment := 0; segment <= d.maxResumes; segment++ {
		walk, err := pagination.Walk(ctx, d.walker, token, fetch)
		out.Pages += walk.Pages
		if err != nil {
			return out, fmt.Errorf("discover webinars: %w", err)
		}

		webinars := lo.Map(lo.UniqBy(walk.Records, func(w zoom.WebinarData) int64 { return w.ID }),
			func(w zoom.WebinarData, _ int) entities.Webinar {
				return entities.Webinar{
					OrganizationID: organizationID,
					ExternalID:     strconv.FormatInt(w.ID, 10),
					UUID:           w.UUID,
					Title:          w.Topic,
					StartTime:      w.StartTime,
					Duration:       w.Duration,
				}
			})
		out.Found += len(walk.Records)
		stored, err := d.store.UpsertDiscoveredWebinars(ctx, webinars)
		out.Stored += stored
		if err != nil {
			return out, err
		}

		out.Truncated = walk.Truncated
		if !walk.Truncated {
			break
		}
		token = walk.NextToken
	}

	if err := d.store.TouchConnection(ctx, organizationID, d.now()); err != nil {
		log.Printf("Recovery: failed to record sync time for %s: %v", organizationID, err)
	}
	log.Printf("Recovery: discovered %d webinars for organization %s (%d pages)", out.Stored, organizationID, out.Pages)
	return out, nil
}
