package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mrlokans/webinarsync/internal/entities"
	"github.com/mrlokans/webinarsync/internal/pagination"
	"github.com/mrlokans/webinarsync/internal/zoom"
)

// DefaultMaxResumes is how many times a truncated walk is continued from its
// cursor before the entity is reported as truncated.
const DefaultMaxResumes = 4

// Recoverer fetches one webinar's upstream records and reconciles them into
// the local store. Partial counts are returned alongside an error.
type Recoverer interface {
	Recover(ctx context.Context, organizationID string, target Target) (Result, error)
}

type ParticipantSource interface {
	ListParticipants(ctx context.Context, organizationID string, endpoint zoom.Endpoint, webinarID string, pageSize int, nextToken string) (zoom.Page[zoom.ParticipantData], error)
}

type RegistrantSource interface {
	ListRegistrants(ctx context.Context, organizationID, webinarID string, pageSize int, nextToken string) (zoom.Page[zoom.RegistrantData], error)
}

type ParticipantStore interface {
	UpsertParticipants(ctx context.Context, webinarID uint, participants []entities.Participant) (int, error)
}

type RegistrantStore interface {
	UpsertRegistrants(ctx context.Context, webinarID uint, registrants []entities.Registrant) (int, error)
}

// ParticipantRecoverer recovers attendance records. The past-participants
// endpoint is tried first and the report endpoint is used when it has nothing.
type ParticipantRecoverer struct {
	source     ParticipantSource
	store      ParticipantStore
	walker     *pagination.Walker
	strategies []zoom.Endpoint
	maxResumes int
}

func NewParticipantRecoverer(source ParticipantSource, store ParticipantStore, walker *pagination.Walker) *ParticipantRecoverer {
	return &ParticipantRecoverer{
		source:     source,
		store:      store,
		walker:     walker,
		strategies: []zoom.Endpoint{zoom.EndpointPastParticipants, zoom.EndpointReportParticipants},
		maxResumes: DefaultMaxResumes,
	}
}

func (r *ParticipantRecoverer) Recover(ctx context.Context, organizationID string, target Target) (Result, error) {
	var best Result
	var lastErr error
	for _, endpoint := range r.strategies {
		res, err := r.recoverFrom(ctx, organizationID, target, endpoint)
		if err != nil {
			if !fallsThrough(err) {
				return res, err
			}
			log.Printf("Recovery: %s unavailable for webinar %s: %v", endpoint, target.ExternalID, err)
			lastErr = err
			continue
		}
		if best.Strategy == "" || res.Found > best.Found {
			best = res
		}
		if res.Found > 0 {
			break
		}
	}
	if best.Strategy == "" {
		return newResult(target), lastErr
	}
	best.Expected = ExpectedAttendees(target.Registrants)
	return best, nil
}

func fallsThrough(err error) bool {
	var statusErr *zoom.StatusError
	return errors.Is(err, zoom.ErrNotFound) || errors.As(err, &statusErr)
}

func (r *ParticipantRecoverer) recoverFrom(ctx context.Context, organizationID string, target Target, endpoint zoom.Endpoint) (Result, error) {
	result := newResult(target)
	result.Strategy = endpoint

	fetch := func(ctx context.Context, pageSize int, token string) (pagination.Page[zoom.ParticipantData], error) {
		page, err := r.source.ListParticipants(ctx, organizationID, endpoint, target.ExternalID, pageSize, token)
		if err != nil {
			return pagination.Page[zoom.ParticipantData]{}, err
		}
		return pagination.Page[zoom.ParticipantData]{Records: page.Records, NextToken: page.NextPageToken}, nil
	}

	err := walkSegments(ctx, r.walker, r.maxResumes, &result, fetch, func(records []zoom.ParticipantData) error {
		participants, rejected := ToParticipants(records)
		result.Rejected += rejected
		stored, err := r.store.UpsertParticipants(ctx, target.WebinarID, participants)
		result.Stored += stored
		if err != nil {
			return fmt.Errorf("store participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Success = true
	result.Message = fmt.Sprintf("stored %d of %d participants", result.Stored, result.Found)
	return result, nil
}

// RegistrantRecoverer recovers approved registrations.
type RegistrantRecoverer struct {
	source     RegistrantSource
	store      RegistrantStore
	walker     *pagination.Walker
	maxResumes int
}

func NewRegistrantRecoverer(source RegistrantSource, store RegistrantStore, walker *pagination.Walker) *RegistrantRecoverer {
	return &RegistrantRecoverer{source: source, store: store, walker: walker, maxResumes: DefaultMaxResumes}
}

func (r *RegistrantRecoverer) Recover(ctx context.Context, organizationID string, target Target) (Result, error) {
	result := newResult(target)
	result.Strategy = zoom.EndpointRegistrants

	fetch := func(ctx context.Context, pageSize int, token string) (pagination.Page[zoom.RegistrantData], error) {
		page, err := r.source.ListRegistrants(ctx, organizationID, target.ExternalID, pageSize, token)
		if err != nil {
			return pagination.Page[zoom.RegistrantData]{}, err
		}
		return pagination.Page[zoom.RegistrantData]{Records: page.Records, NextToken: page.NextPageToken}, nil
	}

	err := walkSegments(ctx, r.walker, r.maxResumes, &result, fetch, func(records []zoom.RegistrantData) error {
		registrants, rejected := ToRegistrants(records)
		result.Rejected += rejected
		stored, err := r.store.UpsertRegistrants(ctx, target.WebinarID, registrants)
		result.Stored += stored
		if err != nil {
			return fmt.Errorf("store registrants: %w", err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Success = true
	result.Message = fmt.Sprintf("stored %d of %d registrants", result.Stored, result.Found)
	return result, nil
}

// walkSegments walks from the start and keeps resuming from the returned
// cursor while the walk is truncated, handing each segment to store.
func walkSegments[T any](ctx context.Context, w *pagination.Walker, maxResumes int, result *Result, fetch pagination.FetchFunc[T], store func([]T) error) error {
	token := ""
	for segment := 0; segment <= maxResumes; segment++ {
		walk, err := pagination.Walk(ctx, w, token, fetch)
		if err != nil {
			return err
		}
		result.Pages += walk.Pages
		result.Found += len(walk.Records)
		if err := store(walk.Records); err != nil {
			return err
		}
		result.Truncated = walk.Truncated
		if !walk.Truncated {
			return nil
		}
		token = walk.NextToken
	}
	log.Printf("Recovery: webinar %s still has pages after %d segments, stopping", result.ExternalID, maxResumes+1)
	return nil
}

func newResult(target Target) Result {
	return Result{WebinarID: target.WebinarID, ExternalID: target.ExternalID, Title: target.Title}
}

var botName = regexp.MustCompile(`(?i)(\bbot\b|notetaker|note taker|\brecorder\b|otter\.ai|fireflies|read\.ai|fathom)`)

// ValidateEmail rejects addresses that do not parse as a bare address.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || !strings.EqualFold(addr.Address, email) {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidRecord, email)
	}
	return nil
}

// ValidateName rejects meeting bots and note-taking assistants.
func ValidateName(name string) error {
	if botName.MatchString(name) {
		return fmt.Errorf("%w: automated attendee %q", ErrInvalidRecord, name)
	}
	return nil
}

// ToParticipants converts upstream participants, dropping invalid ones and
// duplicates within the same batch. It returns the number rejected.
func ToParticipants(records []zoom.ParticipantData) ([]entities.Participant, int) {
	rejected := 0
	out := make([]entities.Participant, 0, len(records))
	for _, d := range records {
		p, err := toParticipant(d)
		if err != nil {
			rejected++
			continue
		}
		out = append(out, p)
	}
	return lo.UniqBy(out, func(p entities.Participant) string { return p.ExternalKey }), rejected
}

func toParticipant(d zoom.ParticipantData) (entities.Participant, error) {
	email := strings.TrimSpace(d.UserEmail)
	if email != "" {
		if err := ValidateEmail(email); err != nil {
			return entities.Participant{}, err
		}
	}
	if err := ValidateName(d.Name); err != nil {
		return entities.Participant{}, err
	}
	identity := firstNonEmpty(d.ID, d.ParticipantUserID, d.RegistrantID, strings.ToLower(email), d.Name)
	if identity == "" {
		return entities.Participant{}, fmt.Errorf("%w: participant without identity", ErrInvalidRecord)
	}

	p := entities.Participant{
		ExternalKey:   identity + "|" + d.JoinTime.UTC().Format(time.RFC3339),
		ParticipantID: firstNonEmpty(d.ID, d.ParticipantUserID),
		Name:          d.Name,
		Email:         email,
		JoinTime:      d.JoinTime,
		Duration:      d.Duration,
	}
	if !d.LeaveTime.IsZero() {
		leave := d.LeaveTime
		p.LeaveTime = &leave
	}
	return p, nil
}

// ToRegistrants converts upstream registrants. An email is required.
func ToRegistrants(records []zoom.RegistrantData) ([]entities.Registrant, int) {
	rejected := 0
	out := make([]entities.Registrant, 0, len(records))
	for _, d := range records {
		email := strings.TrimSpace(d.Email)
		if err := ValidateEmail(email); err != nil {
			rejected++
			continue
		}
		if err := ValidateName(strings.TrimSpace(d.FirstName + " " + d.LastName)); err != nil {
			rejected++
			continue
		}
		out = append(out, entities.Registrant{
			ExternalKey:  firstNonEmpty(d.ID, strings.ToLower(email)),
			Email:        email,
			FirstName:    d.FirstName,
			LastName:     d.LastName,
			Status:       d.Status,
			RegisteredAt: d.CreateTime,
		})
	}
	return lo.UniqBy(out, func(r entities.Registrant) string { return r.ExternalKey }), rejected
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
