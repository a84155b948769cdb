package rpa

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 900
)

var (
	ErrPollTimeout      = errors.New("rpa: timed out waiting for input file to become ready")
	ErrRemoteFileFailed = errors.New("rpa: remote processing of input file failed")
)

type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultPollMaxAttempts
	}
	return c
}

type PollOutcome int

const (
	PollReady PollOutcome = iota
	PollTimedOut
	PollFailed
)

func (o PollOutcome) String() string {
	switch o {
	case PollReady:
		return "ready"
	case PollTimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}

type PollResult struct {
	Outcome  PollOutcome
	File     *InputFile
	Attempts int
	Err      error
}

// Error converts a non-ready result into an error.
func (r PollResult) Error() error {
	switch r.Outcome {
	case PollReady:
		return nil
	case PollTimedOut:
		return fmt.Errorf("%w after %d attempts", ErrPollTimeout, r.Attempts)
	default:
		return r.Err
	}
}

// PollFileReady asks for the input file until its status is READY, sleeping
// Interval between attempts and giving up after MaxAttempts calls.
func (c *Client) PollFileReady(ctx context.Context, fileID string, cfg PollConfig) PollResult {
	cfg = cfg.withDefaults()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		f, err := c.GetInputFile(ctx, fileID)
		if err != nil {
			return PollResult{Outcome: PollFailed, Attempts: attempt, Err: err}
		}
		switch f.Status {
		case FileStatusReady:
			return PollResult{Outcome: PollReady, File: f, Attempts: attempt}
		case FileStatusFailed:
			return PollResult{Outcome: PollFailed, File: f, Attempts: attempt,
				Err: fmt.Errorf("%w: %s", ErrRemoteFileFailed, fileID)}
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return PollResult{Outcome: PollFailed, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	return PollResult{Outcome: PollTimedOut, Attempts: cfg.MaxAttempts}
}
