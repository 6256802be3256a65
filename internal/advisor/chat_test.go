package advisor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriai/agriai/internal/advisor"
	"github.com/agriai/agriai/internal/agronomy"
)

func transcript(n int) []agronomy.Turn {
	turns := make([]agronomy.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := agronomy.RoleUser
		if i%2 == 1 {
			role = agronomy.RoleAssistant
		}
		turns = append(turns, agronomy.Turn{Role: role, Text: fmt.Sprintf("turn %d", i)})
	}
	return turns
}

func TestRecentTurns(t *testing.T) {
	history := []agronomy.Turn{
		{Role: agronomy.RoleUser, Text: "a"},
		{Role: agronomy.RoleAssistant, Text: "b"},
		{Role: agronomy.RoleAssistant, Text: "thinking...", Pending: true},
		{Role: agronomy.RoleUser, Text: "   "},
		{Role: "system", Text: "c"},
		{Role: agronomy.RoleAssistant, Text: "d"},
	}

	got := advisor.RecentTurns(history, 2)
	assert.Equal(t, []agronomy.Turn{
		{Role: agronomy.RoleUser, Text: "c"},
		{Role: agronomy.RoleAssistant, Text: "d"},
	}, got)

	assert.Len(t, advisor.RecentTurns(history, 10), 4)
	assert.Empty(t, advisor.RecentTurns(history, 0))
	assert.Empty(t, advisor.RecentTurns(nil, 5))
}

func TestChat_SendsWindowAndFarmContext(t *testing.T) {
	conv := &fakeConversational{reply: "Irrigate at dawn."}
	svc := newAdvisor(conv, &fakeInference{}, fakeFlags{historyTurns: 5})

	reply, err := svc.Chat(context.Background(), transcript(8), "  When should I irrigate?  ")
	require.NoError(t, err)

	assert.Equal(t, "Irrigate at dawn.", reply.Reply)
	assert.False(t, reply.Degraded)
	require.Len(t, conv.converseArgs, 1)

	sent := conv.converseArgs[0]
	require.Len(t, sent, 6, "five history turns plus the new message")
	assert.Equal(t, "turn 3", sent[0].Text)
	assert.Equal(t, agronomy.Turn{Role: agronomy.RoleUser, Text: "When should I irrigate?"}, sent[5])
	assert.Equal(t, advisor.FarmContext, conv.contexts[0])
	assert.Contains(t, conv.contexts[0], "Tomatoes (2.5ha), Wheat (5.0ha), Corn (3.2ha)")
}

func TestChat_DefaultHistoryWindow(t *testing.T) {
	conv := &fakeConversational{reply: "ok"}
	svc := newAdvisor(conv, &fakeInference{}, nil)

	_, err := svc.Chat(context.Background(), transcript(12), "next")
	require.NoError(t, err)
	assert.Len(t, conv.converseArgs[0], 6)
}

func TestChat_FailureReturnsApology(t *testing.T) {
	conv := &fakeConversational{replyErr: fmt.Errorf("%w: deadline", agronomy.ErrTimeout)}
	svc := newAdvisor(conv, &fakeInference{}, nil)

	reply, err := svc.Chat(context.Background(), nil, "hello")
	require.NoError(t, err)

	assert.Equal(t, agronomy.ChatApology, reply.Reply)
	assert.True(t, reply.Degraded)
	assert.Equal(t, "Timeout", reply.ErrorKind)
}

func TestChat_EmptyMessage(t *testing.T) {
	conv := &fakeConversational{}
	_, err := newAdvisor(conv, &fakeInference{}, nil).Chat(context.Background(), transcript(2), " ")

	assert.ErrorIs(t, err, agronomy.ErrInvalidInput)
	assert.Empty(t, conv.converseArgs)
}

func TestChat_ForceDemoMode(t *testing.T) {
	conv := &fakeConversational{reply: "live"}
	reply, err := newAdvisor(conv, &fakeInference{}, fakeFlags{forceDemo: true}).Chat(context.Background(), nil, "hi")

	require.NoError(t, err)
	assert.Equal(t, agronomy.ChatApology, reply.Reply)
	assert.True(t, reply.Degraded)
	assert.Empty(t, conv.converseArgs)
}
