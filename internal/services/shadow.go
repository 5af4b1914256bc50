package services

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	shadowVisionModel = "gpt-4o"
	shadowPromptModel = "gpt-4o-mini"
)

// ShadowService adds a realistic ground shadow to a background-removed
// product cutout. It runs in three stages: a vision model analyzes the
// product and its lighting, a text model turns the analysis into an
// image-edit instruction, and an image model applies the edit while
// preserving the transparent background.
type ShadowService struct {
	openaiClient *openai.Client
	geminiKey    string
	imageModel   string
}

func NewShadowService(openaiKey, geminiKey, imageModel string) *ShadowService {
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	return &ShadowService{
		openaiClient: openai.NewClient(openaiKey),
		geminiKey:    geminiKey,
		imageModel:   imageModel,
	}
}

// GenerateShadow returns PNG bytes of the product with a synthesized
// shadow. imageURL must point at the background-removed cutout; the same
// image is passed to the edit model as imageData.
func (s *ShadowService) GenerateShadow(ctx context.Context, imageURL string, imageData []byte) ([]byte, error) {
	analysis, err := s.analyzeProduct(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("product analysis failed: %w", err)
	}
	log.Printf("[Shadow] Analysis: %s", truncate(analysis, 120))

	prompt, err := s.buildShadowPrompt(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("shadow prompt generation failed: %w", err)
	}
	log.Printf("[Shadow] Edit prompt: %s", truncate(prompt, 120))

	return s.applyShadow(ctx, prompt, imageData)
}

// analyzeProduct asks the vision model to describe the product, its
// material, and the implied light direction.
func (s *ShadowService) analyzeProduct(ctx context.Context, imageURL string) (string, error) {
	resp, err := s.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: shadowVisionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Describe this product image for shadow synthesis: what the object is, its material and surface finish, the apparent light direction, and the angle it is viewed from. Two or three sentences.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty vision response")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildShadowPrompt turns the analysis into a single edit instruction.
func (s *ShadowService) buildShadowPrompt(ctx context.Context, analysis string) (string, error) {
	resp, err := s.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: shadowPromptModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: `You write image-edit instructions. Given a product analysis, produce ONE instruction for adding a realistic soft ground shadow beneath the object, consistent with the described light direction. The instruction must say to keep the object itself pixel-identical and the background fully transparent. Output only the instruction.`,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: analysis,
			},
		},
		MaxTokens:   200,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty prompt response")
	}
	return resp.Choices[0].Message.Content, nil
}

// applyShadow runs the image edit through the Gen AI SDK.
func (s *ShadowService) applyShadow(ctx context.Context, prompt string, imageData []byte) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.geminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				genai.NewPartFromText(prompt),
				genai.NewPartFromBytes(imageData, "image/png"),
			},
		},
	}

	result, err := client.Models.GenerateContent(ctx, s.imageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("shadow edit failed: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in shadow edit response")
	}
	for _, part := range result.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}

	return nil, fmt.Errorf("no image data in shadow edit response")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
