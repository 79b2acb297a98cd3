package model

import (
	"fmt"
	"strings"
	"time"
)

// Tag is a user-scoped label. (UserID, Name) is unique.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId" validate:"required"`
	Name      string    `json:"name" validate:"required,max=50"`
	CreatedAt time.Time `json:"createdAt"`
}

// IntegrationKind names an external service captures can be synced to.
type IntegrationKind string

const (
	IntegrationNotion   IntegrationKind = "NOTION"
	IntegrationAirtable IntegrationKind = "AIRTABLE"
	IntegrationAsana    IntegrationKind = "ASANA"
)

// ParseIntegrationKind accepts any casing.
func ParseIntegrationKind(s string) (IntegrationKind, error) {
	k := IntegrationKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case IntegrationNotion, IntegrationAirtable, IntegrationAsana:
		return k, nil
	}
	return "", fmt.Errorf("unknown integration kind %q", s)
}

// Integration is a user's connection to an external service. Credentials are
// opaque to this service.
type Integration struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId" validate:"required"`
	Kind        IntegrationKind `json:"kind" validate:"oneof=NOTION AIRTABLE ASANA"`
	Active      bool            `json:"active"`
	Credentials map[string]any  `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SyncStatus is the outcome of the last push of a capture to an integration.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "SUCCESS"
	SyncFailed  SyncStatus = "FAILED"
	SyncPending SyncStatus = "PENDING"
)

// ParseSyncStatus accepts any casing; an empty value is PENDING.
func ParseSyncStatus(s string) (SyncStatus, error) {
	st := SyncStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case "":
		return SyncPending, nil
	case SyncSuccess, SyncFailed, SyncPending:
		return st, nil
	}
	return "", fmt.Errorf("unknown sync status %q", s)
}

// CaptureSync records where a capture lives in an external system. Deleting
// the capture deletes its sync records.
type CaptureSync struct {
	ID            string     `json:"id"`
	CaptureID     string     `json:"captureId" validate:"required"`
	IntegrationID string     `json:"integrationId" validate:"required"`
	ExternalID    string     `json:"externalId" validate:"required,max=255"`
	LastSynced    time.Time  `json:"lastSynced"`
	Status        SyncStatus `json:"status" validate:"oneof=SUCCESS FAILED PENDING"`
}
