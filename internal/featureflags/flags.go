// Package featureflags holds the runtime switches that change how the advisor
// degrades: forcing demo data, allowing single-source merges and sizing the
// chat history window.
package featureflags

import (
	"fmt"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagForceDemoMode skips all AI calls and serves the static datasets.
	FlagForceDemoMode = "force_demo_mode"

	// FlagDegradeToSingleSource lets the recommendation merge keep the
	// inference entries when the conversational call fails.
	FlagDegradeToSingleSource = "degrade_to_single_source"

	// FlagChatHistoryTurns is the number of prior chat turns sent to the model.
	FlagChatHistoryTurns = "chat_history_turns"
)

// DefaultChatHistoryTurns is the history window used when the flag is unset.
const DefaultChatHistoryTurns = 5

// maxChatHistoryTurns bounds the chat history flag.
const maxChatHistoryTurns = 50

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagList represents a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate represents a single flag update request.
type FlagUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FlagUpdateRequest represents a request to update feature flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// BoolValue returns the flag value as a boolean, or defaultValue when the
// flag is nil or not boolean-like.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return defaultValue
	}
}

// IntValue returns the flag value as an integer, or defaultValue when the
// flag is nil or not numeric.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		// JSON numbers decode as float64
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// ValidateUpdate checks that an update targets a known flag with a value of
// the right type.
func ValidateUpdate(u FlagUpdate) error {
	switch u.Key {
	case FlagForceDemoMode, FlagDegradeToSingleSource:
		if _, ok := u.Value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, u.Key)
		}
	case FlagChatHistoryTurns:
		n, ok := u.Value.(float64)
		if !ok {
			if i, isInt := u.Value.(int); isInt {
				n, ok = float64(i), true
			}
		}
		if !ok || n != float64(int(n)) || n < 0 || n > maxChatHistoryTurns {
			return fmt.Errorf("%w: %s must be an integer between 0 and %d", ErrInvalidValue, u.Key, maxChatHistoryTurns)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFlag, u.Key)
	}
	return nil
}

// DefaultFlags returns the default feature flags for the application.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagForceDemoMode: {
			Key:       FlagForceDemoMode,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDegradeToSingleSource: {
			Key:       FlagDegradeToSingleSource,
			Value:     false,
			UpdatedAt: now,
		},
		FlagChatHistoryTurns: {
			Key:       FlagChatHistoryTurns,
			Value:     DefaultChatHistoryTurns,
			UpdatedAt: now,
		},
	}
}
