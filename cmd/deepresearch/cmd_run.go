package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/dusk-indust/deepresearch/internal/state"
)

type runOptions struct {
	SessionID string
	NoClarify bool
	Quiet     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [query...]",
		Short: "Start a research session",
		Long: `Starts a session from the query and runs it until the report is written
or the assistant needs a clarifying answer. In the latter case the question
is printed and the session can be continued with 'deepresearch reply'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.NoClarify {
				root.cfg.Research.AllowClarification = false
			}
			in := state.InputState{Messages: []state.Message{state.UserMessage(strings.Join(args, " "))}}
			return runSession(cmd, root, opts.Quiet, func(ctx context.Context, p *orchestrator.Pipeline) (*orchestrator.Outcome, error) {
				return p.Start(ctx, opts.SessionID, in)
			})
		},
	}
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session ID (default: generated)")
	cmd.Flags().BoolVar(&opts.NoClarify, "no-clarify", false, "never ask a clarifying question")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func newReplyCmd(root *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "reply <session-id> <answer...>",
		Short: "Answer the clarifying question of a paused session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			reply := state.UserMessage(strings.Join(args[1:], " "))
			return runSession(cmd, root, quiet, func(ctx context.Context, p *orchestrator.Pipeline) (*orchestrator.Outcome, error) {
				return p.Resume(ctx, id, reply)
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

// runSession wires an app, streams progress to stderr while fn runs, and
// prints the outcome.
func runSession(cmd *cobra.Command, root *rootOptions, quiet bool, fn func(context.Context, *orchestrator.Pipeline) (*orchestrator.Outcome, error)) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close()

	var wg sync.WaitGroup
	if !quiet {
		events, unsubscribe := a.pipeline.Progress()
		defer unsubscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			printProgress(cmd.ErrOrStderr(), events)
		}()
	}

	out, runErr := fn(ctx, a.pipeline)
	a.pipeline.Close()
	wg.Wait()

	if out == nil {
		return runErr
	}
	if err := printOutcome(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	cp, err := a.store.Load(ctx, out.SessionID)
	if err != nil {
		return err
	}
	return a.publish(ctx, cmd.ErrOrStderr(), cp)
}

func printProgress(w io.Writer, events <-chan orchestrator.ProgressEvent) {
	for ev := range events {
		if ev.Status == orchestrator.ProgressWorking && ev.Section == ev.Stage.String() {
			fmt.Fprintln(w, orchestrator.FormatStageHeader(ev.SessionID, ev.Stage))
			continue
		}
		fmt.Fprintln(w, orchestrator.FormatProgress(ev))
	}
}

func printOutcome(w io.Writer, out *orchestrator.Outcome) error {
	switch out.Phase {
	case checkpoint.PhaseAwaitingInput:
		fmt.Fprintf(w, "Session %s needs clarification:\n\n  %s\n\n", out.SessionID, out.Question)
		fmt.Fprintf(w, "Answer with: deepresearch reply %s <answer>\n", out.SessionID)
	case checkpoint.PhaseCompleted:
		if out.Verification != "" {
			fmt.Fprintf(w, "%s\n\n", out.Verification)
		}
		fmt.Fprintln(w, strings.TrimSpace(out.FinalReport))
	case checkpoint.PhaseFailed:
		fmt.Fprintf(w, "Session %s failed: %s\n", out.SessionID, out.Error)
	default:
		return errors.New("session ended in unexpected phase " + string(out.Phase))
	}
	return nil
}
