package sourcewatch

import (
	"time"

	"github.com/google/uuid"
)

// SourceStatus is the health the checkers last reported for a source.
type SourceStatus string

const (
	SourceUp      SourceStatus = "UP"
	SourceDown    SourceStatus = "DOWN"
	SourcePartial SourceStatus = "PARTIAL"
	SourceUnknown SourceStatus = "UNKNOWN"
)

type User struct {
	UUID        uuid.UUID `json:"uuid"`
	Email       string    `json:"email"`
	Username    string    `json:"username,omitempty"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
}

type UserRegistration struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Source struct {
	UUID        uuid.UUID    `json:"uuid"`
	Name        string       `json:"name"`
	Status      SourceStatus `json:"status"`
	Rating      float64      `json:"rating"`
	Description string       `json:"description,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
}

// SourceFilter narrows getAllSources. Zero fields are not sent.
type SourceFilter struct {
	Skip   int          `json:"skip,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Status SourceStatus `json:"status,omitempty"`
	Name   string       `json:"name,omitempty"`
}

type ResourceCreate struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      SourceStatus `json:"status,omitempty"`
}

type ResourceNode struct {
	UUID         uuid.UUID `json:"uuid,omitempty"`
	ResourceUUID uuid.UUID `json:"resource_uuid"`
	URL          string    `json:"url"`
}

type SocialReport struct {
	UUID         uuid.UUID `json:"uuid"`
	ResourceUUID uuid.UUID `json:"resource_uuid,omitempty"`
	Text         string    `json:"text"`
	URL          string    `json:"url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Review struct {
	UUID         uuid.UUID `json:"uuid"`
	ResourceUUID uuid.UUID `json:"resource_uuid,omitempty"`
	Username     string    `json:"username,omitempty"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReviewCreate struct {
	ResourceUUID uuid.UUID `json:"resource_uuid"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text,omitempty"`
}

type Subscription struct {
	UUID         uuid.UUID `json:"uuid"`
	ResourceUUID uuid.UUID `json:"resource_uuid"`
	Active       bool      `json:"active"`
}

type SubscriptionCreate struct {
	ResourceUUID uuid.UUID `json:"resource_uuid"`
	Active       bool      `json:"active"`
}

// SubscriptionPatch is the body of patchSubscriptions. The subscription id
// travels in the path only.
type SubscriptionPatch struct {
	Active bool `json:"active"`
}

type Report struct {
	UUID         uuid.UUID    `json:"uuid"`
	ResourceUUID uuid.UUID    `json:"resource_uuid,omitempty"`
	ResourceName string       `json:"resource_name,omitempty"`
	Status       SourceStatus `json:"status"`
	Text         string       `json:"text,omitempty"`
	IsModerated  bool         `json:"is_moderated"`
	CreatedAt    time.Time    `json:"created_at"`
}

type ReportCreate struct {
	ResourceUUID uuid.UUID    `json:"resource_uuid"`
	Status       SourceStatus `json:"status"`
	Text         string       `json:"text,omitempty"`
}

// ReportPatch changes only the fields that are set.
type ReportPatch struct {
	Status      *SourceStatus `json:"status,omitempty"`
	Text        *string       `json:"text,omitempty"`
	IsModerated *bool         `json:"is_moderated,omitempty"`
}

type CheckResult struct {
	Status       SourceStatus `json:"status"`
	NodeUUID     uuid.UUID    `json:"node_uuid,omitempty"`
	ResponseTime float64      `json:"response_time,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CheckResultsQuery selects the check history window of a source: the last
// TimeDelta seconds split into MaxCount intervals.
type CheckResultsQuery struct {
	SourceUUID uuid.UUID `json:"source_uuid"`
	TimeDelta  int       `json:"timedelta,omitempty"`
	MaxCount   int       `json:"max_count,omitempty"`
}

type BotToken struct {
	Token string `json:"token"`
}

type DdosStatus struct {
	IsDdos bool `json:"is_ddos"`
}
