package domain

import "time"

// WorkspaceStats summarises the stored memories. The JSON shape is the one
// the extension renders.
type WorkspaceStats struct {
	Episodic         EpisodicStats    `json:"episodic"`
	Semantic         SemanticStats    `json:"semantic"`
	Procedural       ProceduralStats  `json:"procedural"`
	TotalTokens      int              `json:"totalTokens"`
	GmailIntegration GmailIntegration `json:"gmailIntegration"`
}

// EpisodicStats counts episodic memories.
type EpisodicStats struct {
	Episodes int `json:"episodes"`
}

// SemanticStats counts semantic memories.
type SemanticStats struct {
	Facts int `json:"facts"`
}

// ProceduralStats counts procedural memories.
type ProceduralStats struct {
	Patterns int `json:"patterns"`
}

// GmailIntegration describes the sync history.
type GmailIntegration struct {
	TotalEmailsProcessed int        `json:"totalEmailsProcessed"`
	LastSyncAt           *time.Time `json:"lastSyncAt,omitempty"`
}
