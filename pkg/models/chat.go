package models

// ChatRequest is the body accepted by POST /chat.
type ChatRequest struct {
	Issue string `json:"issue"`
	// DryRun defaults to true when omitted. It does not change behavior yet.
	DryRun *bool `json:"dry_run,omitempty"`
}

// IsDryRun reports the effective dry_run value.
func (r ChatRequest) IsDryRun() bool {
	if r.DryRun == nil {
		return true
	}
	return *r.DryRun
}

// ChatResponse is the 200 body of POST /chat.
type ChatResponse struct {
	KBUsed   string `json:"kb_used"`
	Commands string `json:"commands"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
