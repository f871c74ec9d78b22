package models

import "context"

// UploadStatus is the lifecycle of one tracked upload.
type UploadStatus string

const (
	UploadPending UploadStatus = "pending"
	UploadDone    UploadStatus = "done"
)

// UploadEntry is the per-attempt progress record shown to the user.
// Entries are keyed by a random token, never by file name.
type UploadEntry struct {
	Key    string
	Name   string
	Value  string // "0%" .. "100%"
	Status UploadStatus
	Cancel context.CancelFunc
	ID     string // server id, once known
}

// CollabApp is one collaborator application from the discovery endpoint.
type CollabApp struct {
	Name       string   `json:"name,omitempty"`
	Extensions []string `json:"extensions"`
}

// CollabRegistry maps an app key to its description.
type CollabRegistry map[string]CollabApp

// User is an entry of the user directory.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}
