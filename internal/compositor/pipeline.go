package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Stage is the pipeline's lifecycle state. Transitions are strictly
// Opening -> Streaming -> Finalizing -> Done, with Failed reachable
// from anywhere.
type Stage string

const (
	StageOpening    Stage = "opening"
	StageStreaming  Stage = "streaming"
	StageFinalizing Stage = "finalizing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Params are the caller-supplied knobs for one merge job. Immutable
// for the duration of the job.
type Params struct {
	Scale    float64 // sprite width as a fraction of frame width, (0,1]
	Position Anchor
	Duration int  // cap in seconds; 0 = full source length
	Animate  bool // zoom-in + floating motion
}

// DefaultParams returns the documented defaults: 40% scale, centered,
// full length, animated.
func DefaultParams() Params {
	return Params{Scale: 0.4, Position: AnchorCenter, Animate: true}
}

func (p *Params) normalize() {
	if p.Scale <= 0 || p.Scale > 1 {
		p.Scale = 0.4
	}
	p.Position = ParseAnchor(string(p.Position))
}

// ProgressFunc receives stage transitions and frame progress during a
// merge. done/total are only meaningful while streaming.
type ProgressFunc func(stage Stage, done, total int)

// Pipeline merges a product sprite over a background video: decode,
// per-frame composite with animated scale and placement, re-encode.
// Safe for concurrent use; each Merge call keeps its own state.
type Pipeline struct {
	tempDir    string
	OnProgress ProgressFunc
}

// NewPipeline creates a pipeline writing its scratch files under tempDir.
func NewPipeline(tempDir string) (*Pipeline, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &Pipeline{tempDir: tempDir}, nil
}

// Stats describes how much of the source one merge actually consumed.
type Stats struct {
	FramesWritten  int
	FramesExpected int
}

// Truncated reports whether the source delivered fewer frames than its
// container promised.
func (s Stats) Truncated() bool {
	return s.FramesWritten < s.FramesExpected
}

// Merge runs one compositing job and returns the path of the final MP4.
// The caller owns the returned file; every intermediate artifact is
// removed before Merge returns, on success and failure alike.
func (p *Pipeline) Merge(ctx context.Context, spritePath, videoPath string, params Params) (string, Stats, error) {
	params.normalize()

	jobID := uuid.New().String()
	interimPath := filepath.Join(p.tempDir, fmt.Sprintf("merged-interim-%s.avi", jobID))
	outputPath := filepath.Join(p.tempDir, fmt.Sprintf("merged-video-%s.mp4", jobID))

	defer os.Remove(interimPath)

	stats, err := p.run(ctx, spritePath, videoPath, interimPath, outputPath, params)
	if err != nil {
		os.Remove(outputPath)
		p.report(StageFailed, 0, 0)
		return "", stats, err
	}

	p.report(StageDone, 0, 0)
	return outputPath, stats, nil
}

func (p *Pipeline) run(ctx context.Context, spritePath, videoPath, interimPath, outputPath string, params Params) (Stats, error) {
	// ── Opening: probe the source and load the sprite ──────────────────
	p.report(StageOpening, 0, 0)

	info, err := probeSource(ctx, videoPath)
	if err != nil {
		return Stats{}, err
	}

	sprite, err := LoadSprite(spritePath)
	if err != nil {
		return Stats{}, err
	}

	totalFrames := frameBudget(info.FrameCount, info.FPS, params.Duration)
	srcW, srcH := sprite.SourceBounds()
	log.Printf("[Pipeline] source %dx%d @ %.2ffps, %d frames (budget %d), sprite %dx%d, scale=%.2f position=%s animate=%v",
		info.Width, info.Height, info.FPS, info.FrameCount, totalFrames, srcW, srcH, params.Scale, params.Position, params.Animate)

	decoder, decOut, decErrBuf, err := startDecoder(ctx, videoPath)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: start decoder: %v", ErrSourceUnreadable, err)
	}
	defer decoder.Wait()
	defer decOut.Close()

	encoder, encIn, encErrBuf, err := startEncoder(ctx, interimPath, info.FPS)
	if err != nil {
		return Stats{}, fmt.Errorf("start encoder: %w", err)
	}

	// ── Streaming: the per-frame loop ──────────────────────────────────
	// Strictly sequential: the smoothed position carries a dependency
	// from frame N to frame N+1.
	p.report(StageStreaming, 0, totalFrames)

	curve := NewCurve(params.Scale, params.Animate)
	smoother := Smoother{Factor: DefaultSmoothing}
	frame := NewFrame()

	framesWritten := 0
	for frameIdx := 0; frameIdx < totalFrames; frameIdx++ {
		// Cooperative cancellation between frames.
		if err := ctx.Err(); err != nil {
			encIn.Close()
			encoder.Wait()
			return Stats{FramesWritten: framesWritten, FramesExpected: totalFrames}, fmt.Errorf("merge cancelled: %w", err)
		}

		if _, err := io.ReadFull(decOut, frame.Pix); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Source delivered fewer frames than the container
				// claimed. Not fatal: finalize with what we have.
				log.Printf("[Pipeline] partial frame read at %d/%d, truncating", frameIdx, totalFrames)
				break
			}
			encIn.Close()
			encoder.Wait()
			return Stats{FramesWritten: framesWritten, FramesExpected: totalFrames}, fmt.Errorf("read frame %d: %w (decoder: %s)", frameIdx, err, tail(decErrBuf.String(), 500))
		}

		t := float64(frameIdx) / info.FPS
		scale, dy := curve.Eval(t)

		spriteW := int(float64(frame.W) * scale)
		if spriteW < 1 {
			spriteW = 1
		}
		resized := sprite.ResizedTo(spriteW)
		sb := resized.Bounds()

		targetX, targetY := params.Position.Target(frame.W, frame.H, sb.Dx(), sb.Dy(), dy)
		x, y := smoother.Update(targetX, targetY)
		x, y = clampToFrame(x, y, sb.Dx(), sb.Dy(), frame.W, frame.H)

		Blend(frame, resized, x, y)

		if _, err := encIn.Write(frame.Pix); err != nil {
			encIn.Close()
			encoder.Wait()
			return Stats{FramesWritten: framesWritten, FramesExpected: totalFrames}, fmt.Errorf("write frame %d: %w (encoder: %s)", frameIdx, err, tail(encErrBuf.String(), 500))
		}

		framesWritten++
		if framesWritten%150 == 0 {
			p.report(StageStreaming, framesWritten, totalFrames)
		}
	}

	stats := Stats{FramesWritten: framesWritten, FramesExpected: totalFrames}

	// ── Finalizing: flush the encoder, transcode, clean up ─────────────
	p.report(StageFinalizing, framesWritten, totalFrames)

	if err := encIn.Close(); err != nil {
		return stats, fmt.Errorf("close encoder input: %w", err)
	}
	if err := encoder.Wait(); err != nil {
		return stats, fmt.Errorf("encoder exited: %w (%s)", err, tail(encErrBuf.String(), 500))
	}
	if framesWritten == 0 {
		return stats, fmt.Errorf("%w: decoder produced no frames", ErrSourceUnreadable)
	}

	if err := Transcode(ctx, interimPath, outputPath); err != nil {
		return stats, err
	}

	log.Printf("[Pipeline] merged %d frames into %s", framesWritten, outputPath)
	return stats, nil
}

func (p *Pipeline) report(stage Stage, done, total int) {
	if p.OnProgress != nil {
		p.OnProgress(stage, done, total)
	}
}

// frameBudget bounds the number of frames to process: the source frame
// count, optionally capped at durationSec seconds worth of frames.
func frameBudget(frameCount int, fps float64, durationSec int) int {
	if durationSec > 0 {
		if max := int(fps * float64(durationSec)); max < frameCount {
			return max
		}
	}
	return frameCount
}

// startDecoder spawns ffmpeg decoding the source into raw RGB24 frames
// at the output resolution on stdout. The Lanczos scaler matches the
// quality of the sprite resize.
func startDecoder(ctx context.Context, videoPath string) (*exec.Cmd, io.ReadCloser, *bytes.Buffer, error) {
	args := []string{
		"-v", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("scale=%d:%d", FrameWidth, FrameHeight),
		"-sws_flags", "lanczos",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-an",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdout, &stderr, nil
}

// startEncoder spawns ffmpeg consuming raw RGB24 frames on stdin and
// writing an MJPEG interim file. MJPEG keeps the interim step fast and
// tolerant; the quality ladder is applied by the final transcode.
func startEncoder(ctx context.Context, interimPath string, fps float64) (*exec.Cmd, io.WriteCloser, *bytes.Buffer, error) {
	args := []string{
		"-v", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", FrameWidth, FrameHeight),
		"-framerate", fmt.Sprintf("%.6f", fps),
		"-i", "pipe:0",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-y",
		interimPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdin, &stderr, nil
}
