package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// DefaultTool is the hcitool location on most distributions.
const DefaultTool = "/usr/bin/hcitool"

// waitDelay bounds how long a killed query may hold its output pipes.
const waitDelay = time.Second

var queryAddressRegex = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$`)

// runFunc runs a command and returns its stdout and stderr.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// runCommand is the production runFunc.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Tool path comes from validated config, args are a validated MAC
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ClassicQuerier performs directed name lookups with hcitool.
//
// Each query runs `hcitool name <address>` under a timeout. A non-empty
// answer means the device is in range; empty output is a clean negative.
// Everything else (missing tool, timeout, busy or absent adapter) is a
// StatusFailed outcome with a classified error.
type ClassicQuerier struct {
	tool   string
	run    runFunc
	logger Logger
}

// NewClassicQuerier creates a querier using the given hcitool binary.
// An empty path selects DefaultTool.
func NewClassicQuerier(tool string) *ClassicQuerier {
	if tool == "" {
		tool = DefaultTool
	}
	return &ClassicQuerier{
		tool:   tool,
		run:    runCommand,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the querier.
func (q *ClassicQuerier) SetLogger(logger Logger) {
	q.logger = logger
}

// Query looks up the name of address, waiting at most timeout.
func (q *ClassicQuerier) Query(ctx context.Context, address string, timeout time.Duration) Outcome {
	if !queryAddressRegex.MatchString(address) {
		return Failed(fmt.Errorf("%w: %q", ErrInvalidAddress, address))
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := q.run(queryCtx, q.tool, "name", address)
	if err != nil {
		outcome := Failed(q.classify(queryCtx, ctx, stderr, err))
		q.logger.Debug("directed query failed",
			"address", address,
			"error", outcome.Err,
		)
		return outcome
	}

	name := strings.TrimSpace(string(stdout))
	if name == "" {
		return NotFound()
	}
	return Found(name)
}

// classify maps a failed run to a sentinel error.
func (q *ClassicQuerier) classify(queryCtx, parent context.Context, stderr []byte, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrToolUnavailable, q.tool, err)
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(queryCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrScanTimeout, queryCtx.Err())
	}

	msg := strings.ToLower(strings.TrimSpace(string(stderr)))
	switch {
	case strings.Contains(msg, "busy"):
		return fmt.Errorf("%w: %s", ErrBusy, msg)
	case strings.Contains(msg, "not available"), strings.Contains(msg, "no such device"):
		return fmt.Errorf("%w: %s", ErrAdapterUnavailable, msg)
	case msg != "":
		return fmt.Errorf("%w: %s", ErrQueryFailed, msg)
	default:
		return fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
}
