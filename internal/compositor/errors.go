package compositor

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal failure modes of a merge job. Callers
// branch on these with errors.Is; everything else is wrapped context.
var (
	// ErrSourceUnreadable means the background video could not be opened
	// or probed. Fatal — the caller may retry the whole job with a
	// re-fetched source, the pipeline never retries internally.
	ErrSourceUnreadable = errors.New("source video unreadable")

	// ErrSpriteInvalid means the product image could not be decoded or
	// carries no alpha channel. Fatal.
	ErrSpriteInvalid = errors.New("sprite image invalid")
)

// TranscodeError is returned when the final encode step exits non-zero
// or hits its hard timeout. Stderr carries the encoder's diagnostic
// output, truncated for log safety.
type TranscodeError struct {
	Err    error
	Stderr string
}

func (e *TranscodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("transcode failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("transcode failed: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}
