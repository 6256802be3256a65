package bedrock_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/bedrock"
	"github.com/agriai/agriai/internal/provider/resilience"
)

type fakeInvoker struct {
	body  []byte
	err   error
	block bool

	calls []*bedrockruntime.InvokeModelInput
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls = append(f.calls, params)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func (f *fakeInvoker) lastPayload(t *testing.T) map[string]any {
	t.Helper()
	require.NotEmpty(t, f.calls)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(f.calls[len(f.calls)-1].Body, &payload))
	return payload
}

func claudeBody(text string) []byte {
	data, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return data
}

func titanBody(text string) []byte {
	data, _ := json.Marshal(map[string]any{
		"results": []map[string]string{{"outputText": text}},
	})
	return data
}

func newClient(inv *fakeInvoker, mode bedrock.ResponseMode) *bedrock.Client {
	return bedrock.NewClient(bedrock.Config{
		Invoker: inv,
		Mode:    mode,
		Timeout: time.Second,
		Logger:  zerolog.Nop(),
	})
}

func TestConverse_SendsTranscriptAndContext(t *testing.T) {
	inv := &fakeInvoker{body: claudeBody("Water early in the morning.")}
	client := newClient(inv, bedrock.ModeParsed)

	reply, err := client.Converse(context.Background(), []agronomy.Turn{
		{Role: agronomy.RoleUser, Text: "Hi"},
		{Role: agronomy.RoleAssistant, Text: "Hello, how can I help?"},
		{Role: agronomy.RoleUser, Text: "When should I water?"},
	}, "Farm: 45 hectares")

	require.NoError(t, err)
	assert.Equal(t, "Water early in the morning.", reply)

	call := inv.calls[0]
	assert.Equal(t, bedrock.DefaultChatModelID, *call.ModelId)
	assert.Equal(t, "application/json", *call.ContentType)

	payload := inv.lastPayload(t)
	assert.Equal(t, "bedrock-2023-05-31", payload["anthropic_version"])
	assert.EqualValues(t, 1000, payload["max_tokens"])
	assert.Contains(t, payload["system"], "Current context: Farm: 45 hectares")

	messages := payload["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].(string)
	assert.Equal(t, "Human: Hi\n\nAssistant: Hello, how can I help?\n\nHuman: When should I water?", content)
}

func TestConverse_EmptyTurns(t *testing.T) {
	inv := &fakeInvoker{}
	_, err := newClient(inv, bedrock.ModeParsed).Converse(context.Background(), nil, "")

	assert.ErrorIs(t, err, agronomy.ErrInvalidInput)
	assert.Empty(t, inv.calls)
}

func TestConverse_ServiceError(t *testing.T) {
	inv := &fakeInvoker{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no access"}}
	_, err := newClient(inv, bedrock.ModeParsed).Converse(context.Background(),
		[]agronomy.Turn{{Role: agronomy.RoleUser, Text: "hi"}}, "")

	require.ErrorIs(t, err, agronomy.ErrServiceUnavailable)
	var apiErr smithy.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "AccessDeniedException", apiErr.ErrorCode())
}

func TestConverse_Timeout(t *testing.T) {
	inv := &fakeInvoker{block: true}
	client := bedrock.NewClient(bedrock.Config{
		Invoker: inv,
		Timeout: 20 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})

	_, err := client.Converse(context.Background(), []agronomy.Turn{{Role: agronomy.RoleUser, Text: "hi"}}, "")
	assert.ErrorIs(t, err, agronomy.ErrTimeout)
}

func TestConverse_MalformedEnvelope(t *testing.T) {
	for name, body := range map[string][]byte{
		"not json":   []byte("<html>"),
		"no content": []byte(`{"content":[]}`),
		"empty body": nil,
	} {
		t.Run(name, func(t *testing.T) {
			inv := &fakeInvoker{body: body}
			_, err := newClient(inv, bedrock.ModeParsed).Converse(context.Background(),
				[]agronomy.Turn{{Role: agronomy.RoleUser, Text: "hi"}}, "")
			assert.ErrorIs(t, err, agronomy.ErrMalformedResponse)
		})
	}
}

func TestGenerateRecommendations_Parsed(t *testing.T) {
	narrative := "Here are my suggestions:\n```json\n" + `{"recommendations":[
		{"crop":"Maize","suitability":0.92,"expectedYield":"8-10 tons/ha","plantingTime":"October","harvestTime":"120 days","marketPrice":"$0.30/kg","careInstructions":["Weed early","Side-dress nitrogen"],"benefits":["Staple"]},
		{"name":"Beans","suitability_score":"81%"},
		{"suitability":50}
	]}` + "\n```"
	inv := &fakeInvoker{body: titanBody(narrative)}
	client := newClient(inv, bedrock.ModeParsed)

	req := agronomy.NewRecommendationRequest(agronomy.SoilLoamy, agronomy.SeasonSpring, agronomy.ClimateTemperate)
	got, err := client.GenerateRecommendations(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, narrative, got.Narrative)
	require.Len(t, got.Candidates, 2, "entries without a crop name are skipped")

	maize := got.Candidates[0]
	assert.Equal(t, "Maize", maize.Name)
	assert.Equal(t, 92, maize.Suitability)
	assert.Equal(t, "Weed early; Side-dress nitrogen", maize.CareInstructions)
	assert.Equal(t, []string{"Staple"}, maize.Benefits)
	assert.Equal(t, agronomy.SourceConversational, maize.Source)

	assert.Equal(t, "Beans", got.Candidates[1].Name)
	assert.Equal(t, 81, got.Candidates[1].Suitability)

	assert.Equal(t, bedrock.DefaultTextModelID, *inv.calls[0].ModelId)
	payload := inv.lastPayload(t)
	assert.Contains(t, payload["inputText"], "- Type: loamy")
	cfg := payload["textGenerationConfig"].(map[string]any)
	assert.EqualValues(t, 2000, cfg["maxTokenCount"])
	assert.EqualValues(t, 0.3, cfg["temperature"])
	assert.EqualValues(t, 0.9, cfg["topP"])
}

func TestGenerateRecommendations_TopLevelArray(t *testing.T) {
	inv := &fakeInvoker{body: titanBody(`[{"crop":"Sorghum","suitability":77}]`)}
	got, err := newClient(inv, bedrock.ModeParsed).GenerateRecommendations(context.Background(),
		agronomy.NewRecommendationRequest(agronomy.SoilSandy, agronomy.SeasonSummer, agronomy.ClimateArid))

	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "Sorghum", got.Candidates[0].Name)
	assert.Equal(t, 77, got.Candidates[0].Suitability)
}

func TestGenerateRecommendations_UnparseableNarrative(t *testing.T) {
	inv := &fakeInvoker{body: titanBody("Plant tomatoes, they love the sun.")}
	_, err := newClient(inv, bedrock.ModeParsed).GenerateRecommendations(context.Background(),
		agronomy.NewRecommendationRequest(agronomy.SoilLoamy, agronomy.SeasonSpring, agronomy.ClimateTemperate))

	assert.ErrorIs(t, err, agronomy.ErrMalformedResponse)
}

func TestGenerateRecommendations_SkipsBracketedProse(t *testing.T) {
	tests := []struct {
		name      string
		narrative string
	}{
		{"citation", "Based on soil tests [1], here are my picks:\n" + `{"recommendations":[{"crop":"Maize","suitability":90}]}`},
		{"leading note object", `{"note":"scores are estimates"}` + "\n" + `{"crops":[{"name":"Maize","suitability":90}]}`},
		{"crop-less list first", `[{"suitability":40}] then [{"crop":"Maize","suitability":90}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvoker{body: titanBody(tt.narrative)}
			got, err := newClient(inv, bedrock.ModeParsed).GenerateRecommendations(context.Background(),
				agronomy.NewRecommendationRequest(agronomy.SoilLoamy, agronomy.SeasonSummer, agronomy.ClimateTemperate))

			require.NoError(t, err)
			require.Len(t, got.Candidates, 1)
			assert.Equal(t, "Maize", got.Candidates[0].Name)
			assert.Equal(t, 90, got.Candidates[0].Suitability)
		})
	}
}

func TestGenerateRecommendations_SuitabilityScales(t *testing.T) {
	tests := []struct {
		name  string
		crop  string
		score int
	}{
		{"whole percent one", `{"crop":"Rice","suitability":1}`, 1},
		{"whole percent", `{"crop":"Rice","suitability":64}`, 64},
		{"fraction", `{"crop":"Rice","suitability":0.64}`, 64},
		{"explicit percent", `{"crop":"Rice","suitability":"0.4%"}`, 0},
		{"probability key certain", `{"crop":"Rice","suitability_score":1}`, 100},
		{"probability key fraction", `{"crop":"Rice","suitability_score":0.955}`, 96},
		{"probability key percent", `{"crop":"Rice","suitability_score":"81%"}`, 81},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvoker{body: titanBody(`{"recommendations":[` + tt.crop + `]}`)}
			got, err := newClient(inv, bedrock.ModeParsed).GenerateRecommendations(context.Background(),
				agronomy.NewRecommendationRequest(agronomy.SoilClay, agronomy.SeasonMonsoon, agronomy.ClimateTropical))

			require.NoError(t, err)
			assert.Equal(t, tt.score, got.Candidates[0].Suitability)
		})
	}
}

func TestGenerateRecommendations_ReferenceMode(t *testing.T) {
	narrative := "ab"
	for len(narrative) < 450 {
		narrative += narrative
	}
	inv := &fakeInvoker{body: titanBody(narrative)}
	got, err := newClient(inv, bedrock.ModeReference).GenerateRecommendations(context.Background(),
		agronomy.NewRecommendationRequest(agronomy.SoilLoamy, agronomy.SeasonSpring, agronomy.ClimateTemperate))

	require.NoError(t, err)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "Tomatoes", got.Candidates[0].Name)
	assert.Equal(t, 95, got.Candidates[0].Suitability)
	assert.Equal(t, narrative[:200]+"...", got.Candidates[0].CareInstructions)
	assert.Equal(t, "Bell Peppers", got.Candidates[1].Name)
	assert.Equal(t, 88, got.Candidates[1].Suitability)
	assert.Equal(t, narrative[200:400]+"...", got.Candidates[1].CareInstructions)
}

func TestGenerateRecommendations_ReferenceModeShortNarrative(t *testing.T) {
	inv := &fakeInvoker{body: titanBody("short")}
	got, err := newClient(inv, bedrock.ModeReference).GenerateRecommendations(context.Background(),
		agronomy.NewRecommendationRequest(agronomy.SoilLoamy, agronomy.SeasonSpring, agronomy.ClimateTemperate))

	require.NoError(t, err)
	assert.Equal(t, "short...", got.Candidates[0].CareInstructions)
	assert.Equal(t, "...", got.Candidates[1].CareInstructions)
}

// pngHeader is the 8-byte PNG signature followed by an IHDR chunk prefix.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestAnalyzeImageForPest_Parsed(t *testing.T) {
	reply := `Analysis complete. {"pestIdentified":"Whiteflies","confidence":0.87,"severity":"high",` +
		`"description":"Adults on leaf undersides","treatments":["Yellow sticky traps"],"prevention":["Remove weeds"]}`
	inv := &fakeInvoker{body: claudeBody(reply)}

	got, err := newClient(inv, bedrock.ModeParsed).AnalyzeImageForPest(context.Background(), pngHeader, "tomato")
	require.NoError(t, err)

	assert.Equal(t, "Whiteflies", got.PestIdentified)
	assert.Equal(t, 87, got.Confidence)
	assert.Equal(t, agronomy.SeverityHigh, got.Severity)
	assert.Equal(t, []string{"Yellow sticky traps"}, got.Treatment)
	assert.Equal(t, []string{"Remove weeds"}, got.Prevention)
	assert.Equal(t, reply, got.Analysis)
	assert.Equal(t, agronomy.ServiceBedrock, got.Service)
	assert.Equal(t, agronomy.ProvenancePrimary, got.Provenance)

	payload := inv.lastPayload(t)
	assert.EqualValues(t, 1500, payload["max_tokens"])
	blocks := payload["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0].(map[string]any)["text"], "Crop Type: tomato")
	source := blocks[1].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), source["data"])
}

func TestAnalyzeImageForPest_UnknownFormatDefaultsToJPEG(t *testing.T) {
	inv := &fakeInvoker{body: claudeBody(`{"pest":"Mites","confidence":70}`)}
	got, err := newClient(inv, bedrock.ModeParsed).AnalyzeImageForPest(context.Background(), []byte("raw-bytes"), "")
	require.NoError(t, err)

	assert.Equal(t, "Mites", got.PestIdentified)
	assert.Equal(t, agronomy.SeverityMedium, got.Severity, "missing severity defaults to medium")
	assert.Empty(t, got.Treatment)

	blocks := inv.lastPayload(t)["messages"].([]any)[0].(map[string]any)["content"].([]any)
	source := blocks[1].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "image/jpeg", source["media_type"])
}

func TestAnalyzeImageForPest_NoPestNamed(t *testing.T) {
	inv := &fakeInvoker{body: claudeBody(`{"confidence":50}`)}
	_, err := newClient(inv, bedrock.ModeParsed).AnalyzeImageForPest(context.Background(), pngHeader, "corn")
	assert.ErrorIs(t, err, agronomy.ErrMalformedResponse)
}

func TestAnalyzeImageForPest_SkipsBracketedProse(t *testing.T) {
	reply := `Leaf damage matches pattern [2] and {"note":"low light"}. ` +
		`{"pestIdentified":"Spider mites","confidence":72,"severity":"low"}`
	inv := &fakeInvoker{body: claudeBody(reply)}

	got, err := newClient(inv, bedrock.ModeParsed).AnalyzeImageForPest(context.Background(), pngHeader, "beans")
	require.NoError(t, err)
	assert.Equal(t, "Spider mites", got.PestIdentified)
	assert.Equal(t, 72, got.Confidence)
	assert.Equal(t, agronomy.SeverityLow, got.Severity)
}

func TestAnalyzeImageForPest_ReferenceMode(t *testing.T) {
	inv := &fakeInvoker{body: claudeBody("I see small green insects.")}
	got, err := newClient(inv, bedrock.ModeReference).AnalyzeImageForPest(context.Background(), pngHeader, "")
	require.NoError(t, err)

	assert.Equal(t, "Aphids", got.PestIdentified)
	assert.Equal(t, 94, got.Confidence)
	assert.Equal(t, agronomy.SeverityMedium, got.Severity)
	assert.Len(t, got.Treatment, 3)
	assert.Len(t, got.Prevention, 3)
	assert.Equal(t, "I see small green insects.", got.Analysis)
}

func TestAnalyzeImageForPest_EmptyImage(t *testing.T) {
	inv := &fakeInvoker{}
	_, err := newClient(inv, bedrock.ModeParsed).AnalyzeImageForPest(context.Background(), nil, "corn")

	assert.ErrorIs(t, err, agronomy.ErrInvalidInput)
	assert.Empty(t, inv.calls)
}

func TestGenerateWeeklyReport(t *testing.T) {
	inv := &fakeInvoker{body: titanBody("Executive Summary: a good week.")}
	report, err := newClient(inv, bedrock.ModeParsed).GenerateWeeklyReport(context.Background(), agronomy.FarmMetrics{
		TotalYield:     "12.5 tons",
		Revenue:        "$45,200",
		Expenses:       "$12,800",
		CropHealth:     map[string]float64{"corn": 92},
		PestDetections: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Executive Summary: a good week.", report)

	payload := inv.lastPayload(t)
	prompt := payload["inputText"].(string)
	assert.Contains(t, prompt, "- Total Yield: 12.5 tons")
	assert.Contains(t, prompt, `- Crop Health Scores: {"corn":92}`)
	assert.Contains(t, prompt, "- Pest Detections: 3")
	cfg := payload["textGenerationConfig"].(map[string]any)
	assert.EqualValues(t, 3000, cfg["maxTokenCount"])
}

func TestClient_RecordsRegistryOutcome(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("bedrock")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)

	inv := &fakeInvoker{err: errors.New("connection refused")}
	client := bedrock.NewClient(bedrock.Config{Invoker: inv, Registry: registry, Logger: zerolog.Nop()})

	_, err := client.GenerateWeeklyReport(context.Background(), agronomy.FarmMetrics{})
	require.Error(t, err)

	health := registry.GetHealth("bedrock")
	require.NotNil(t, health)
	assert.True(t, health.LastCallFailed())
	assert.Contains(t, health.LastError, "connection refused")
}

func TestClient_NoInvoker(t *testing.T) {
	client := bedrock.NewClient(bedrock.Config{Logger: zerolog.Nop()})
	_, err := client.GenerateWeeklyReport(context.Background(), agronomy.FarmMetrics{})
	assert.ErrorIs(t, err, agronomy.ErrServiceUnavailable)
}
