// Package models holds the records shared by the upload pipeline, the link
// allocator and the storage layer.
package models

import "time"

// Publish statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Gateways a PublishResult can come from.
const (
	EndpointPrimary = "primary"
	EndpointBackup  = "backup"
)

// Gateway configuration keys.
const (
	ConfigKeyGatewayURL = "upload_gateway_url"
	ConfigKeyUserAgent  = "user_agent"
)

// UploadRequest is a single upload as received from the client. It is never persisted.
type UploadRequest struct {
	// Data: raw file bytes.
	Data []byte
	// Filename: name declared by the client.
	Filename string
	// ContentType: media type declared by the client.
	ContentType string
	// WantShortLink: mint a short link to the published artifact.
	WantShortLink bool
	// OwnerID: identity of the uploader, may be empty.
	OwnerID string
	// OwnerLabel: human readable owner name stored with the short link.
	OwnerLabel string
	// VerificationToken: optional human-verification token.
	VerificationToken string
}

// PublishResult describes an artifact published to the content-addressed network.
type PublishResult struct {
	Status     string `json:"status"`
	ContentID  string `json:"content_id,omitempty"`
	NativeURI  string `json:"native_uri,omitempty"`
	GatewayURL string `json:"gateway_url,omitempty"`
	ByteSize   int64  `json:"byte_size"`
	Filename   string `json:"filename,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	ShortURL   string `json:"short_url,omitempty"`
}

// ShortLink - persisted mapping between a short code and its target URL.
type ShortLink struct {
	Code       string    `json:"code" db:"code"`
	Target     string    `json:"target" db:"target"`
	OwnerID    string    `json:"owner_id" db:"owner_id"`
	OwnerLabel string    `json:"owner_label" db:"owner_label"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// GatewayConfig - a single row of the gateway key/value table.
type GatewayConfig struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LinkPage is one page of an owner's links.
type LinkPage struct {
	Links    []ShortLink `json:"links"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// LinkStats represents the response of the migration stats endpoint.
type LinkStats struct {
	// Total: number of stored links.
	Total int `json:"total"`
	// OnOldDomain: links whose target is on the retired host.
	OnOldDomain int `json:"on_old_domain"`
	// OnNewDomain: links whose target is on the replacement host.
	OnNewDomain int `json:"on_new_domain"`
	// Other: distinct hosts of the remaining targets.
	Other []string `json:"other"`
}

// MigrationDetail records one rewritten target.
type MigrationDetail struct {
	Code      string `json:"code"`
	OldTarget string `json:"old_target"`
	NewTarget string `json:"new_target"`
}

// MigrationReport is the result of a target rewrite sweep.
type MigrationReport struct {
	Checked int               `json:"checked"`
	Fixed   int               `json:"fixed"`
	Details []MigrationDetail `json:"details"`
}

// JournalEntry - one line of the file storage journal.
type JournalEntry struct {
	// Op: "put", "target", "delete", "clear" or "config".
	Op     string         `json:"op"`
	Link   ShortLink      `json:"link,omitempty"`
	Config *GatewayConfig `json:"config,omitempty"`
}
