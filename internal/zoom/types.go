package zoom

import "time"

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	PageSize      int    `json:"page_size"`
	TotalRecords  int    `json:"total_records"`
	NextPageToken string `json:"next_page_token"`
	Records       []T    `json:"-"`
}

// ParticipantData represents a participant from the past webinar participants report
type ParticipantData struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	UserEmail         string    `json:"user_email"`
	JoinTime          time.Time `json:"join_time"`
	LeaveTime         time.Time `json:"leave_time"`
	Duration          int       `json:"duration"`
	RegistrantID      string    `json:"registrant_id"`
	ParticipantUserID string    `json:"participant_user_id"`
}

// RegistrantData represents a webinar registrant
type RegistrantData struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Status     string    `json:"status"`
	CreateTime time.Time `json:"create_time"`
}

// WebinarData represents a webinar from the list endpoint
type WebinarData struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Topic     string    `json:"topic"`
	StartTime time.Time `json:"start_time"`
	Duration  int       `json:"duration"`
}

type participantsResponse struct {
	PageSize      int               `json:"page_size"`
	TotalRecords  int               `json:"total_records"`
	NextPageToken string            `json:"next_page_token"`
	Participants  []ParticipantData `json:"participants"`
}

type registrantsResponse struct {
	PageSize      int              `json:"page_size"`
	TotalRecords  int              `json:"total_records"`
	NextPageToken string           `json:"next_page_token"`
	Registrants   []RegistrantData `json:"registrants"`
}

type webinarsResponse struct {
	PageSize      int           `json:"page_size"`
	TotalRecords  int           `json:"total_records"`
	NextPageToken string        `json:"next_page_token"`
	Webinars      []WebinarData `json:"webinars"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
