package types

import "time"

// AttemptStatus is the terminal state of one open attempt
type AttemptStatus string

const (
	AttemptRegistered AttemptStatus = "registered"
	AttemptFailed     AttemptStatus = "failed"
)

// OpenAttempt is a journal entry for one TryOpen call
type OpenAttempt struct {
	ID          int64             `json:"id,omitempty" yaml:"id,omitempty"`
	SessionID   string            `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	Sequence    int64             `json:"sequence" yaml:"sequence"`
	WindowID    string            `json:"windowId" yaml:"windowId"`
	WindowLabel string            `json:"windowLabel" yaml:"windowLabel"`
	Args        map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
	Status      AttemptStatus     `json:"status" yaml:"status"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt" yaml:"createdAt"`
}

// JournalStatus describes the open-attempt journal of a running host
type JournalStatus struct {
	Healthy          bool   `json:"healthy" yaml:"healthy"`
	MigrationVersion int64  `json:"migrationVersion" yaml:"migrationVersion"`
	OpenConnections  int    `json:"openConnections" yaml:"openConnections"`
	InUse            int    `json:"inUse" yaml:"inUse"`
	Error            string `json:"error,omitempty" yaml:"error,omitempty"`
}
