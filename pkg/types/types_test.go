package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	ev := Event{
		ID:        1,
		ThreadID:  "lace_20250101_abc123",
		Type:      EventToolCall,
		Timestamp: 1700000000000,
		Data: EventData{
			ToolCall: &ToolCallData{
				CallID: "call_1",
				Name:   "bash",
				Args:   json.RawMessage(`{"command":"ls"}`),
			},
		},
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var out Event
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, ev, out)
}

func TestEventDataTextShape(t *testing.T) {
	ev := Event{Type: EventUserMessage, Data: NewTextData("hello")}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"text":"hello"`)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityRank(PriorityHigh), PriorityRank(PriorityMedium))
	assert.Less(t, PriorityRank(PriorityMedium), PriorityRank(PriorityLow))
	assert.Greater(t, PriorityRank(TaskPriority("bogus")), PriorityRank(PriorityLow))
}

func TestMergeLayerConfigScalarOverride(t *testing.T) {
	base := LayerConfig{
		Temperature: floatPtr(0.5),
		Tools:       []string{"file-read", "bash"},
		ToolPolicies: map[string]ToolPolicy{
			"bash": PolicyRequireApproval,
		},
	}
	session := LayerConfig{Temperature: floatPtr(0.8)}
	agent := LayerConfig{ToolPolicies: map[string]ToolPolicy{"bash": PolicyDeny}}

	effective := MergeLayerConfig(MergeLayerConfig(base, session), agent)

	assert.Equal(t, 0.8, *effective.Temperature)
	assert.Equal(t, []string{"file-read", "bash"}, effective.Tools)
	assert.Equal(t, PolicyDeny, effective.ToolPolicies["bash"])
}

func TestMergeLayerConfigToolPoliciesKeyWise(t *testing.T) {
	base := LayerConfig{ToolPolicies: map[string]ToolPolicy{
		"bash":      PolicyRequireApproval,
		"file-read": PolicyAllow,
	}}
	override := LayerConfig{ToolPolicies: map[string]ToolPolicy{
		"bash": PolicyDeny,
	}}

	merged := MergeLayerConfig(base, override)

	assert.Equal(t, PolicyDeny, merged.ToolPolicies["bash"])
	assert.Equal(t, PolicyAllow, merged.ToolPolicies["file-read"])
}

func floatPtr(f float64) *float64 { return &f }
