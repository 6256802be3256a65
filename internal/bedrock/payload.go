package bedrock

import (
	"fmt"

	"github.com/agriai/agriai/internal/agronomy"
)

const anthropicVersion = "bedrock-2023-05-31"

// Claude messages API.

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

// claudeMessage content is either a plain string or a list of content blocks.
type claudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (r *claudeResponse) text() (string, error) {
	if len(r.Content) == 0 {
		return "", fmt.Errorf("%w: response has no content blocks", agronomy.ErrMalformedResponse)
	}
	return r.Content[0].Text, nil
}

// Titan text API.

type titanRequest struct {
	InputText            string      `json:"inputText"`
	TextGenerationConfig titanConfig `json:"textGenerationConfig"`
}

type titanConfig struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"topP"`
}

type titanResponse struct {
	Results []struct {
		OutputText       string `json:"outputText"`
		CompletionReason string `json:"completionReason"`
	} `json:"results"`
}

func (r *titanResponse) text() (string, error) {
	if len(r.Results) == 0 {
		return "", fmt.Errorf("%w: response has no results", agronomy.ErrMalformedResponse)
	}
	return r.Results[0].OutputText, nil
}

var (
	recommendationConfig = titanConfig{MaxTokenCount: 2000, Temperature: 0.3, TopP: 0.9}
	reportConfig         = titanConfig{MaxTokenCount: 3000, Temperature: 0.2, TopP: 0.8}
)

const (
	chatMaxTokens = 1000
	pestMaxTokens = 1500
)
