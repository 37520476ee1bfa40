package types

// Thread is an append-only event sequence belonging to a session. A
// delegate thread's ID extends its parent's with a ".N" suffix.
type Thread struct {
	ID        string         `json:"id"`
	ParentID  string         `json:"parentId,omitempty"`
	SessionID string         `json:"sessionId"`
	CreatedAt int64          `json:"createdAt"`
	Metadata  ThreadMetadata `json:"metadata"`
}

// ThreadMetadata holds human-readable and provider-binding information
// about a thread. Name and arbitrary Extra key/values are free-form;
// ProviderInstanceID/ModelID identify which provider/model this thread's
// agent is (or was) bound to.
type ThreadMetadata struct {
	Name               string         `json:"name,omitempty"`
	ProviderInstanceID string         `json:"providerInstanceId,omitempty"`
	ModelID            string         `json:"modelId,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}
