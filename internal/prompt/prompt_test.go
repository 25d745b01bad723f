package prompt

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aical-app/aical/internal/memory"
)

var now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func TestSingleEvent_EmbedsTextAndTime(t *testing.T) {
	p := SingleEvent("Dentist on March 12 at 3pm", now)
	assert.Contains(t, p, "Extract exactly ONE concrete event")
	assert.Contains(t, p, "Current time: 2025-03-10T09:30:00Z")
	assert.Contains(t, p, "User: Dentist on March 12 at 3pm")
	assert.Contains(t, p, "return {}")
}

func TestSingleEvent_KeepsZoneOffset(t *testing.T) {
	p := SingleEvent("dinner tonight", now.In(time.FixedZone("EDT", -4*60*60)))
	assert.Contains(t, p, "Current time: 2025-03-10T05:30:00-04:00")
}

func TestConversation_MapsRolesAndAppendsUserTurn(t *testing.T) {
	history := []memory.Turn{
		{Role: memory.RoleUser, Text: "hi"},
		{Role: memory.RoleModel, Text: "hello"},
	}
	contents := Conversation(history, "plan my week", ConversationLimit)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, "plan my week", contents[2].Parts[0].Text)
}

func TestConversation_TruncatesToLimit(t *testing.T) {
	var history []memory.Turn
	for i := 1; i <= 10; i++ {
		history = append(history, memory.Turn{Role: memory.RoleUser, Text: fmt.Sprintf("m%d", i)})
	}
	contents := Conversation(history, "new", 10)
	require.Len(t, contents, 10)
	assert.Equal(t, "m2", contents[0].Parts[0].Text)
	assert.Equal(t, "new", contents[9].Parts[0].Text)
}

func TestConversation_UnknownRoleIsSentAsUser(t *testing.T) {
	contents := Conversation([]memory.Turn{{Role: "system", Text: "x"}}, "y", 0)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
}

func TestPlan_RendersTranscript(t *testing.T) {
	history := []memory.Turn{
		{Role: memory.RoleUser, Text: "I work 9-5"},
		{Role: memory.RoleModel, Text: "Noted."},
	}
	p := Plan(history, now)
	assert.Contains(t, p, "USER: I work 9-5\nMODEL: Noted.")
	assert.Contains(t, p, "Current datetime (ISO): 2025-03-10T09:30:00Z")
	assert.Contains(t, p, "7-day plan")
	assert.Contains(t, p, "Return [] if there is not enough information")
	assert.Contains(t, p, PlanExample)
}

func TestFallbackPlan_QuotesRequest(t *testing.T) {
	p := FallbackPlan(`gym "every" evening`, now)
	assert.Contains(t, p, "Current ISO time: 2025-03-10T09:30:00Z.")
	assert.Contains(t, p, `User request: "gym \"every\" evening"`)
}
