package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

const removeBgEndpoint = "https://api.remove.bg/v1.0/removebg"

// RemoveBgService strips backgrounds from product photos via the
// remove.bg API. The result is always PNG with an alpha channel, which
// is what the compositing pipeline requires for its sprite input.
type RemoveBgService struct {
	apiKey string
	client *http.Client
}

func NewRemoveBgService(apiKey string) *RemoveBgService {
	return &RemoveBgService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// RemoveBackground sends the image and returns transparent PNG bytes.
func (s *RemoveBgService) RemoveBackground(ctx context.Context, imageData []byte) ([]byte, error) {
	body, contentType, err := buildRemoveBgForm(imageData)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", removeBgEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)
	req.Header.Set("Content-Type", contentType)

	log.Printf("[RemoveBg] Removing background (%d bytes in)", len(imageData))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remove.bg request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remove.bg response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remove.bg returned status %d: %s", resp.StatusCode, string(respBody))
	}

	log.Printf("[RemoveBg] Done (%d bytes out)", len(respBody))
	return respBody, nil
}

// buildRemoveBgForm packs the image into the multipart form the API
// expects: the file under image_file plus size=auto so the full source
// resolution is kept.
func buildRemoveBgForm(imageData []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image_file", "product.png")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("size", "auto"); err != nil {
		return nil, "", fmt.Errorf("failed to write size field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
