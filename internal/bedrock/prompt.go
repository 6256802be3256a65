package bedrock

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/agriai/agriai/internal/agronomy"
)

const advisorPersona = "You are AgriAI, an expert agricultural advisor with deep knowledge of farming, " +
	"crop management, pest control, soil science, and sustainable agriculture practices."

const advisorGuidance = `Provide practical, actionable advice based on scientific agricultural principles. Always consider:
- Sustainable farming practices
- Local climate and soil conditions
- Economic viability for farmers
- Environmental impact
- Safety considerations

Keep responses concise but comprehensive, and always prioritize farmer safety and crop health.`

// systemPrompt builds the advisor system prompt with an optional context block.
func systemPrompt(systemContext string) string {
	var b strings.Builder
	b.WriteString(advisorPersona)
	b.WriteString("\n\n")
	if c := strings.TrimSpace(systemContext); c != "" {
		b.WriteString("Current context: ")
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString(advisorGuidance)
	return b.String()
}

// transcript renders turns as a Human/Assistant exchange.
func transcript(turns []agronomy.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		speaker := "Human"
		if t.Role == agronomy.RoleAssistant {
			speaker = "Assistant"
		}
		parts = append(parts, speaker+": "+t.Text)
	}
	return strings.Join(parts, "\n\n")
}

func recommendationPrompt(req agronomy.RecommendationRequest) string {
	nutrients, _ := json.Marshal(req.Soil.Nutrients) //nolint:errcheck // plain string struct

	var b strings.Builder
	b.WriteString("Based on the following agricultural data, provide detailed crop recommendations:\n\n")
	b.WriteString("Soil Data:\n")
	fmt.Fprintf(&b, "- Type: %s\n", req.Soil.Type)
	fmt.Fprintf(&b, "- pH: %s\n", num(req.Soil.PH))
	fmt.Fprintf(&b, "- Moisture: %s%%\n", num(req.Soil.Moisture))
	fmt.Fprintf(&b, "- Nutrients: %s\n\n", nutrients)
	b.WriteString("Weather Data:\n")
	fmt.Fprintf(&b, "- Temperature: %s°C\n", num(req.Weather.Temperature))
	fmt.Fprintf(&b, "- Humidity: %s%%\n", num(req.Weather.Humidity))
	fmt.Fprintf(&b, "- Rainfall: %smm\n", num(req.Weather.Rainfall))
	fmt.Fprintf(&b, "- Season: %s\n\n", req.Weather.Season)
	fmt.Fprintf(&b, "Location: %s\n\n", req.Region)
	b.WriteString(`Please provide:
1. Top 5 recommended crops with suitability scores (0-100)
2. Expected yield estimates
3. Planting timeline
4. Specific care instructions
5. Market potential and pricing

Format the response as a structured JSON object with a "recommendations" array whose items have the keys
"crop", "suitability", "expectedYield", "plantingTime", "harvestTime", "marketPrice", "careInstructions" and "benefits".`)
	return b.String()
}

func pestPrompt(cropType string) string {
	if strings.TrimSpace(cropType) == "" {
		cropType = "unspecified"
	}
	return fmt.Sprintf(`Analyze this crop image for pest identification:

Crop Type: %s
Image: [Base64 image data provided]

Please identify:
1. Any pests or diseases visible
2. Severity level (Low/Medium/High)
3. Confidence score (0-100%%)
4. Treatment recommendations
5. Prevention strategies
6. Expected damage if untreated

Provide detailed analysis in JSON format with the keys "pestIdentified", "confidence", "severity",
"description", "treatment", "prevention" and "expectedDamage".`, cropType)
}

func reportPrompt(m agronomy.FarmMetrics) string {
	var b strings.Builder
	b.WriteString("Generate a comprehensive weekly farm report based on the following data:\n\n")
	b.WriteString("Farm Metrics:\n")
	fmt.Fprintf(&b, "- Total Yield: %s\n", m.TotalYield)
	fmt.Fprintf(&b, "- Revenue: %s\n", m.Revenue)
	fmt.Fprintf(&b, "- Expenses: %s\n", m.Expenses)
	fmt.Fprintf(&b, "- Crop Health Scores: %s\n", compactJSON(m.CropHealth))
	fmt.Fprintf(&b, "- Weather Conditions: %s\n", compactJSON(m.Weather))
	fmt.Fprintf(&b, "- Pest Detections: %d\n", m.PestDetections)
	fmt.Fprintf(&b, "- Irrigation Data: %s\n", compactJSON(m.Irrigation))
	if len(m.Crops) > 0 {
		crops := make([]string, 0, len(m.Crops))
		for _, c := range m.Crops {
			crops = append(crops, fmt.Sprintf("%s (%sha)", c.Crop, num(c.Hectares)))
		}
		fmt.Fprintf(&b, "- Planted Crops: %s\n", strings.Join(crops, ", "))
	}
	b.WriteString(`
Please provide:
1. Executive Summary
2. Key Performance Indicators
3. Crop-specific analysis
4. Environmental impact assessment
5. Recommendations for next week
6. Risk factors and mitigation strategies
7. Market insights and pricing trends

Format as a professional agricultural report.`)
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "{}"
	}
	return string(data)
}
