package compositor

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// sourceInfo holds the properties the pipeline needs from the
// background video before streaming frames.
type sourceInfo struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// probeSource reads stream properties with ffprobe. Any failure here —
// missing file, corrupt container, no video stream — surfaces as
// ErrSourceUnreadable; there is nothing sensible to stream from.
func probeSource(ctx context.Context, path string) (sourceInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	out, err := exec.CommandContext(ctx, "ffprobe", args...).Output()
	if err != nil {
		return sourceInfo{}, fmt.Errorf("%w: ffprobe: %v", ErrSourceUnreadable, err)
	}

	var probe struct {
		Streams []struct {
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			RFrameRate string `json:"r_frame_rate"`
			NbFrames   string `json:"nb_frames"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal(out, &probe); err != nil {
		return sourceInfo{}, fmt.Errorf("%w: parse ffprobe output: %v", ErrSourceUnreadable, err)
	}
	if len(probe.Streams) == 0 {
		return sourceInfo{}, fmt.Errorf("%w: no video stream", ErrSourceUnreadable)
	}

	s := probe.Streams[0]

	fps, err := parseRate(s.RFrameRate)
	if err != nil || fps <= 0 {
		return sourceInfo{}, fmt.Errorf("%w: bad frame rate %q", ErrSourceUnreadable, s.RFrameRate)
	}

	info := sourceInfo{Width: s.Width, Height: s.Height, FPS: fps}

	// nb_frames is container metadata and often absent ("N/A" or
	// empty); fall back to duration * fps.
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && d > 0 {
		info.FrameCount = int(d * fps)
	}

	if info.FrameCount <= 0 {
		return sourceInfo{}, fmt.Errorf("%w: could not determine frame count", ErrSourceUnreadable)
	}

	return info, nil
}

// parseRate parses ffprobe rational rates like "30000/1001" or "25/1".
func parseRate(s string) (float64, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	if len(parts) == 1 {
		return num, nil
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, fmt.Errorf("zero denominator in rate %q", s)
	}
	return num / den, nil
}
