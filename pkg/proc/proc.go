// Package proc provides bounded-timeout execution of external commands
// with output capture. It exists so that callers shelling out to media
// tooling (ffprobe/ffmpeg) never leak a child process: every exit path,
// including timeout and caller cancellation, kills and reaps the child.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/castorhq/castor/pkg/logger"
)

var log = logger.Get("Proc")

// ErrTimeout is returned (wrapped) by Run when the child process failed
// to terminate within the command's timeout and was forcibly killed.
var ErrTimeout = errors.New("process did not terminate within allotted time")

type (
	// Command describes a single external process invocation.
	Command struct {
		Bin  string
		Args []string

		// Timeout is the upper bound on process execution. A process
		// exceeding it is killed. Zero means no bound.
		Timeout time.Duration

		// MergeStderr interleaves the process' standard error into the
		// captured output, which is useful for tools (such as ffmpeg)
		// that report diagnostics on stderr.
		MergeStderr bool
	}

	// Outcome captures how an invocation ended. ExitCode is only
	// meaningful when TimedOut is false.
	Outcome struct {
		ExitCode int
		Output   []byte
		Elapsed  time.Duration
		TimedOut bool
	}
)

// Run spawns the command and waits for it to complete, killing it if the
// timeout elapses or the provided context is cancelled first.
//
// A non-zero exit status is NOT an error: the outcome carries the exit code
// and captured output and the caller decides whether that is fatal. Run only
// errors when the process could not be spawned, was killed due to timeout
// (wrapping ErrTimeout), or the context was cancelled.
func Run(ctx context.Context, command Command) (*Outcome, error) {
	cmd := exec.Command(command.Bin, command.Args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	if command.MergeStderr {
		cmd.Stderr = &output
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", command.Bin, err)
	}

	// Wait in a goroutine so the select below can race completion
	// against the deadline. The channel is buffered so the goroutine
	// never leaks when we return via the timeout path: the deferred
	// reap below always drains it.
	waitResult := make(chan error, 1)
	go func() { waitResult <- cmd.Wait() }()

	var deadline <-chan time.Time
	if command.Timeout > 0 {
		timer := time.NewTimer(command.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case err := <-waitResult:
		outcome := &Outcome{
			ExitCode: cmd.ProcessState.ExitCode(),
			Output:   output.Bytes(),
			Elapsed:  time.Since(start),
		}

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return outcome, fmt.Errorf("failed waiting on %s: %w", command.Bin, err)
		}

		return outcome, nil
	case <-deadline:
		killAndReap(cmd, waitResult)
		return &Outcome{
			ExitCode: -1,
			Output:   output.Bytes(),
			Elapsed:  time.Since(start),
			TimedOut: true,
		}, fmt.Errorf("%s exceeded timeout of %s: %w", command.Bin, command.Timeout, ErrTimeout)
	case <-ctx.Done():
		killAndReap(cmd, waitResult)
		return &Outcome{
			ExitCode: -1,
			Output:   output.Bytes(),
			Elapsed:  time.Since(start),
		}, ctx.Err()
	}
}

// killAndReap forcibly terminates the process and then waits for the
// Wait goroutine to observe its death, guaranteeing no zombie remains.
func killAndReap(cmd *exec.Cmd, waitResult <-chan error) {
	if err := cmd.Process.Kill(); err != nil {
		log.Emit(logger.WARNING, "Failed to kill process %d (%s): %s\n", cmd.Process.Pid, cmd.Path, err.Error())
	}

	<-waitResult
}
