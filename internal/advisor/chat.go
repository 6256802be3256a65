package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/agriai/agriai/internal/agronomy"
)

// FarmContext is the farm status block sent with every chat message.
const FarmContext = `Current farm status:
- Location: Temperate climate zone
- Soil type: Loamy soil, pH 6.8
- Current crops: Tomatoes (2.5ha), Wheat (5.0ha), Corn (3.2ha)
- Season: Summer growing season
- Recent weather: 24°C average, 68% soil moisture
- IoT sensors: 12 active sensors monitoring soil and weather`

// ChatReply is the assistant's answer to one chat message.
type ChatReply struct {
	Reply     string `json:"reply"`
	Degraded  bool   `json:"degraded"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Chat answers message given the prior history. Pending and empty turns are
// dropped and only the latest turns are sent. Adapter failures produce the
// apology reply rather than an error.
func (s *Service) Chat(ctx context.Context, history []agronomy.Turn, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", agronomy.ErrInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "advisor.chat")
	defer span.End()

	if s.flags.ForceDemoMode(ctx) || s.conv == nil {
		return &ChatReply{Reply: agronomy.ChatApology, Degraded: true}, nil
	}

	turns := append(RecentTurns(history, s.flags.ChatHistoryTurns(ctx)),
		agronomy.Turn{Role: agronomy.RoleUser, Text: message})

	reply, err := s.conv.Converse(ctx, turns, FarmContext)
	if err != nil {
		kind := agronomy.Kind(err)
		s.logger.Warn().Err(err).Str("kind", kind).Int("turns", len(turns)).Msg("chat reply failed")
		return &ChatReply{Reply: agronomy.ChatApology, Degraded: true, ErrorKind: kind}, nil
	}
	return &ChatReply{Reply: reply}, nil
}

// RecentTurns returns the last k settled turns of history.
func RecentTurns(history []agronomy.Turn, k int) []agronomy.Turn {
	settled := make([]agronomy.Turn, 0, len(history))
	for _, t := range history {
		if t.Pending || strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.Role != agronomy.RoleAssistant {
			t.Role = agronomy.RoleUser
		}
		settled = append(settled, t)
	}
	if k <= 0 {
		return settled[:0]
	}
	if len(settled) > k {
		settled = settled[len(settled)-k:]
	}
	return settled
}
