package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/spacefiler/spacefiler/internal/models"
)

// ConflictDecision is the answer for a file that already exists at the destination.
type ConflictDecision int

const (
	DecisionAsk ConflictDecision = iota
	DecisionReplace
	DecisionKeepBoth
	DecisionSkip
)

// parseConflictPolicy maps an --on-conflict value to a decision.
func parseConflictPolicy(s string) (ConflictDecision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ask":
		return DecisionAsk, nil
	case "replace", "overwrite":
		return DecisionReplace, nil
	case "keep", "keep-both":
		return DecisionKeepBoth, nil
	case "skip":
		return DecisionSkip, nil
	}
	return DecisionAsk, fmt.Errorf("invalid --on-conflict %q (want ask, replace, keep or skip)", s)
}

// promptConflict asks what to do with a file that already exists.
func promptConflict(in *bufio.Reader, out io.Writer, fileName, where string, more int) (ConflictDecision, error) {
	fmt.Fprintf(out, "\n⚠️  File '%s' already exists in '%s'.\n", fileName, where)
	if more > 0 {
		fmt.Fprintf(out, "   (%d more waiting for a decision)\n", more)
	}
	fmt.Fprintln(out, "What would you like to do?")
	fmt.Fprintln(out, "  1. Replace - Overwrite the existing file")
	fmt.Fprintln(out, "  2. Keep both - Upload it as a new file next to the existing one")
	fmt.Fprintln(out, "  3. Skip - Do not upload this file")
	fmt.Fprint(out, "Choose [1-3]: ")

	input, err := in.ReadString('\n')
	if err != nil && input == "" {
		return DecisionSkip, err
	}

	switch strings.TrimSpace(input) {
	case "1":
		return DecisionReplace, nil
	case "2":
		return DecisionKeepBoth, nil
	case "3":
		return DecisionSkip, nil
	default:
		if err != nil {
			return DecisionSkip, err
		}
		fmt.Fprintln(out, "Invalid choice, please try again.")
		return promptConflict(in, out, fileName, where, more)
	}
}

// conflictQueue is the part of the conflict resolver the prompt loop drives.
type conflictQueue interface {
	Head() (models.File, bool)
	Pending() int
	Replace(ctx context.Context) (string, error)
	KeepBoth(ctx context.Context) (string, error)
	Skip() (models.File, error)
}

// failureSink receives uploads that failed after a decision.
type failureSink interface {
	Fail(key string, err error)
}

// resolveConflicts works through the queue until it is empty, prompting
// when policy is DecisionAsk. Upload failures are collected, not fatal.
func resolveConflicts(ctx context.Context, q conflictQueue, policy ConflictDecision, in *bufio.Reader, out io.Writer, where string, sink failureSink) error {
	var errs []error
	for {
		head, ok := q.Head()
		if !ok {
			return errors.Join(errs...)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		decision := policy
		if decision == DecisionAsk {
			d, err := promptConflict(in, out, head.Name(), where, q.Pending()-1)
			if err != nil {
				return fmt.Errorf("failed to read decision: %w", err)
			}
			decision = d
		}

		var key string
		var err error
		switch decision {
		case DecisionReplace:
			key, err = q.Replace(ctx)
		case DecisionKeepBoth:
			key, err = q.KeepBoth(ctx)
		default:
			_, err = q.Skip()
			fmt.Fprintf(out, "Skipped %s\n", head.Name())
		}
		if err != nil {
			if sink != nil && key != "" {
				sink.Fail(key, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", head.Name(), err))
		}
	}
}

// promptLine reads one line from stdin after printing label.
func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// promptSecret reads a password without echo when stdin is a terminal.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(label)
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
