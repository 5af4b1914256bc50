package compositor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// transcodeTimeout is a hard ceiling on the final encode. An encoder
// subprocess can hang on malformed input; the job must fail, not hang.
const transcodeTimeout = 5 * time.Minute

// buildTranscodeArgs constructs the ffmpeg argument list for the final
// web-delivery encode: forced 1920x1080 with letterboxing, H.264 high
// profile at visually-lossless quality, faststart so browsers can begin
// playback before the download completes.
func buildTranscodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-vf", "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2",
		"-c:v", "libx264",
		"-preset", "slow",
		"-crf", "18",
		"-profile:v", "high",
		"-level", "4.2",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-b:v", "8M",
		"-maxrate", "10M",
		"-bufsize", "16M",
		"-y",
		outputPath,
	}
}

// Transcode re-encodes the intermediate file into the final MP4.
// The intermediate is not mutated; a non-zero exit or timeout yields a
// *TranscodeError carrying the encoder's stderr.
func Transcode(ctx context.Context, inputPath, outputPath string) error {
	tctx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, "ffmpeg", buildTranscodeArgs(inputPath, outputPath)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Printf("[Transcode] %s -> %s", inputPath, outputPath)

	if err := cmd.Run(); err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %v", transcodeTimeout)
		}
		return &TranscodeError{Err: err, Stderr: tail(stderr.String(), 2000)}
	}

	return nil
}

// tail keeps the last n bytes of encoder output — ffmpeg prints the
// actual failure reason at the end of its stderr stream.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
