package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/promoforge/promoforge/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const scenarioModel = "gpt-4o-mini"

type ScenarioService struct {
	client *openai.Client
}

func NewScenarioService(apiKey string) *ScenarioService {
	return &ScenarioService{
		client: openai.NewClient(apiKey),
	}
}

// Scenario is the complete ad plan generated for one product.
type Scenario struct {
	ScenarioID           string          `json:"scenarioId"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Scenes               []ScenarioScene `json:"scenes"`
	DetectedDemographics Demographics    `json:"detectedDemographics"`
	ThumbnailPrompt      string          `json:"thumbnailPrompt"`
}

// ScenarioScene is one scene of the generated scenario.
type ScenarioScene struct {
	SceneID        string `json:"sceneId"`
	Description    string `json:"description"`
	Duration       int    `json:"duration"`
	ImagePrompt    string `json:"imagePrompt"`
	VisualPrompt   string `json:"visualPrompt"`
	OverlayPrompt  string `json:"overlayPrompt"`
	ImageReasoning string `json:"imageReasoning"`
}

// Demographics is the audience profile the model infers from the product.
type Demographics struct {
	TargetGender       string `json:"targetGender"`
	AgeGroup           string `json:"ageGroup"`
	ProductType        string `json:"productType"`
	DemographicContext string `json:"demographicContext"`
}

// scenarioSchema is the function-call schema the model must fill. Keeping
// the response behind a tool call is what makes the output machine-parseable
// without a separate repair pass.
var scenarioSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "Catchy title for the ad scenario"},
    "description": {"type": "string", "description": "One-paragraph summary of the ad concept"},
    "scenes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "sceneId": {"type": "string"},
          "description": {"type": "string"},
          "duration": {"type": "integer", "description": "Scene duration in seconds"},
          "imagePrompt": {"type": "string", "description": "Prompt for generating the scene background image"},
          "visualPrompt": {"type": "string", "description": "Prompt describing camera motion and visual treatment"},
          "overlayPrompt": {"type": "string", "description": "Short on-screen text for the scene, empty if none"},
          "imageReasoning": {"type": "string", "description": "Why this image fits the scene"}
        },
        "required": ["sceneId", "description", "duration", "imagePrompt", "visualPrompt", "imageReasoning"]
      }
    },
    "detectedDemographics": {
      "type": "object",
      "properties": {
        "targetGender": {"type": "string", "enum": ["male", "female", "unisex"]},
        "ageGroup": {"type": "string"},
        "productType": {"type": "string"},
        "demographicContext": {"type": "string"}
      },
      "required": ["targetGender", "ageGroup", "productType", "demographicContext"]
    },
    "thumbnailPrompt": {"type": "string", "description": "Prompt for the scenario thumbnail image"}
  },
  "required": ["title", "description", "scenes", "detectedDemographics", "thumbnailPrompt"]
}`)

// GenerateScenario asks the model for a complete ad scenario for the product.
// The response is coerced into a valid Scenario even when the model omits
// optional demographic fields.
func (s *ScenarioService) GenerateScenario(ctx context.Context, req *models.GenerateScenarioRequest) (*Scenario, error) {
	systemPrompt := buildScenarioSystemPrompt(req)
	userPrompt := buildScenarioUserPrompt(req)

	log.Printf("[Scenario] Generating scenario for product %q (user %s)", req.ProductName, req.UserID)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: scenarioModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        "generate_single_scenario",
					Description: "Generate a complete promotional video scenario for a product",
					Parameters:  scenarioSchema,
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: "generate_single_scenario"},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario generation failed: %w", err)
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool call in scenario response")
	}

	raw := resp.Choices[0].Message.ToolCalls[0].Function.Arguments

	var scenario Scenario
	if err := json.Unmarshal([]byte(raw), &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}

	if err := coerceScenario(&scenario, req.ProductName); err != nil {
		return nil, err
	}

	log.Printf("[Scenario] Generated %q with %d scenes (audience: %s/%s)",
		scenario.Title, len(scenario.Scenes),
		scenario.DetectedDemographics.TargetGender, scenario.DetectedDemographics.AgeGroup)

	return &scenario, nil
}

// coerceScenario validates the model output and fills missing demographic
// fields with safe defaults rather than failing the whole generation.
func coerceScenario(sc *Scenario, productName string) error {
	if sc.Title == "" {
		return fmt.Errorf("scenario missing title")
	}
	if len(sc.Scenes) == 0 {
		return fmt.Errorf("scenario has no scenes")
	}
	for i := range sc.Scenes {
		if sc.Scenes[i].SceneID == "" {
			sc.Scenes[i].SceneID = fmt.Sprintf("scene-%d", i+1)
		}
		if sc.Scenes[i].Duration <= 0 {
			sc.Scenes[i].Duration = 5
		}
		if sc.Scenes[i].ImagePrompt == "" {
			return fmt.Errorf("scene %s missing image prompt", sc.Scenes[i].SceneID)
		}
	}

	if sc.DetectedDemographics.TargetGender == "" {
		sc.DetectedDemographics.TargetGender = "unisex"
	}
	if sc.DetectedDemographics.AgeGroup == "" {
		sc.DetectedDemographics.AgeGroup = "all-ages"
	}
	if sc.DetectedDemographics.ProductType == "" {
		sc.DetectedDemographics.ProductType = "general"
	}
	if sc.ThumbnailPrompt == "" {
		sc.ThumbnailPrompt = fmt.Sprintf("Professional product photography of %s on a clean studio background, soft lighting, commercial advertising style", productName)
	}

	return nil
}

func buildScenarioSystemPrompt(req *models.GenerateScenarioRequest) string {
	var sb strings.Builder

	sb.WriteString(`You are a creative director for short-form product advertising videos.
Given a product, you design a complete video scenario: an overall concept,
a sequence of scenes, and the audience it targets.

Rules:
- Each scene must be 3-8 seconds long; total video length 15-40 seconds.
- imagePrompt describes a single still background image for the scene. The
  product itself will be composited over the background later, so never
  describe the product appearing in the image.
- visualPrompt describes camera motion and visual treatment for the scene.
- overlayPrompt is a short line of on-screen text for the scene, or empty
  when the scene works better without text.
- Infer the target demographics from the product, not from assumptions
  about who is asking.
- Write all user-facing text (title, description) in the requested language.`)

	if req.Language != nil && *req.Language != "" && *req.Language != "en" {
		sb.WriteString(fmt.Sprintf("\n- Requested language: %s", *req.Language))
	}

	return sb.String()
}

func buildScenarioUserPrompt(req *models.GenerateScenarioRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Product: %s\n", req.ProductName))
	if req.ProductInfo != nil && *req.ProductInfo != "" {
		sb.WriteString(fmt.Sprintf("Product details: %s\n", *req.ProductInfo))
	}
	if req.Style != nil && *req.Style != "" {
		sb.WriteString(fmt.Sprintf("Visual style: %s\n", *req.Style))
	}
	if req.Mood != nil && *req.Mood != "" {
		sb.WriteString(fmt.Sprintf("Mood: %s\n", *req.Mood))
	}
	if req.TargetAudience != nil && *req.TargetAudience != "" {
		sb.WriteString(fmt.Sprintf("Target audience hint: %s\n", *req.TargetAudience))
	}
	if len(req.ProductImages) > 0 {
		sb.WriteString(fmt.Sprintf("The user provided %d product image(s).\n", len(req.ProductImages)))
	}

	sb.WriteString("\nGenerate one complete ad scenario for this product.")

	return sb.String()
}
