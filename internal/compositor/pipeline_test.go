package compositor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewPipelineCreatesTempDir(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "scratch")

	p, err := NewPipeline(tempDir)
	if err != nil {
		t.Fatalf("NewPipeline() = %v", err)
	}
	if p == nil {
		t.Fatal("expected pipeline")
	}
	if _, err := os.Stat(tempDir); err != nil {
		t.Fatalf("temp dir not created: %v", err)
	}
}

func TestNewPipelineReturnsErrorForUnusableDir(t *testing.T) {
	// A scratch-disk problem must fail the one job, not the process.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	if _, err := NewPipeline(filepath.Join(blocker, "sub")); err == nil {
		t.Error("expected error for temp dir under a regular file")
	}
}

func TestStatsTruncated(t *testing.T) {
	tests := []struct {
		stats Stats
		want  bool
	}{
		{Stats{FramesWritten: 300, FramesExpected: 300}, false},
		{Stats{FramesWritten: 299, FramesExpected: 300}, true},
		{Stats{FramesWritten: 0, FramesExpected: 0}, false},
	}
	for _, tt := range tests {
		if got := tt.stats.Truncated(); got != tt.want {
			t.Errorf("Truncated(%+v) = %v, want %v", tt.stats, got, tt.want)
		}
	}
}

func TestFrameBudget(t *testing.T) {
	tests := []struct {
		name       string
		frameCount int
		fps        float64
		duration   int
		want       int
	}{
		{"no cap uses source count", 300, 30, 0, 300},
		{"cap below source truncates", 300, 30, 5, 150},
		{"cap above source is ignored", 300, 30, 20, 300},
		{"cap equal to source", 300, 30, 10, 300},
		{"fractional fps", 299, 29.97, 5, 149},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := frameBudget(tt.frameCount, tt.fps, tt.duration); got != tt.want {
				t.Errorf("frameBudget(%d, %v, %d) = %d, want %d",
					tt.frameCount, tt.fps, tt.duration, got, tt.want)
			}
		})
	}
}

func TestParamsNormalize(t *testing.T) {
	p := Params{Scale: 0, Position: "weird"}
	p.normalize()
	if p.Scale != 0.4 {
		t.Errorf("scale = %v, want default 0.4", p.Scale)
	}
	if p.Position != AnchorCenter {
		t.Errorf("position = %v, want center", p.Position)
	}

	p = Params{Scale: 1.5, Position: "left"}
	p.normalize()
	if p.Scale != 0.4 {
		t.Errorf("out-of-range scale = %v, want default 0.4", p.Scale)
	}
	if p.Position != AnchorLeft {
		t.Errorf("position = %v, want left", p.Position)
	}
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.Scale != 0.4 || p.Position != AnchorCenter || !p.Animate || p.Duration != 0 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30/1", 30, false},
		{"30000/1001", 29.97002997002997, false},
		{"25", 25, false},
		{"0/0", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := parseRate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseRate(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRate(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildTranscodeArgs(t *testing.T) {
	args := buildTranscodeArgs("in.avi", "out.mp4")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i in.avi",
		"scale=1920:1080:force_original_aspect_ratio=decrease",
		"pad=1920:1080:(ow-iw)/2:(oh-ih)/2",
		"-c:v libx264",
		"-preset slow",
		"-crf 18",
		"-profile:v high",
		"-level 4.2",
		"-pix_fmt yuv420p",
		"-movflags +faststart",
		"-b:v 8M",
		"-maxrate 10M",
		"-bufsize 16M",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("transcode args missing %q in %q", want, joined)
		}
	}

	if args[len(args)-1] != "out.mp4" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}
}

func TestTranscodeErrorFormatting(t *testing.T) {
	e := &TranscodeError{Err: errExit, Stderr: "broken pixel format"}
	if !strings.Contains(e.Error(), "broken pixel format") {
		t.Errorf("error message missing stderr: %q", e.Error())
	}
}

var errExit = &exitErrStub{}

type exitErrStub struct{}

func (e *exitErrStub) Error() string { return "exit status 1" }
