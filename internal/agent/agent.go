// Package agent runs the tool-calling loop between a decision source and
// a mailbox: each decision is either a rendered page, which ends the
// interaction, or a mailbox tool call whose formatted result is folded
// back into the conversation context.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/mail-agent/internal/mailbox"
)

// DefaultMaxIterations bounds the decisions taken for one interaction.
const DefaultMaxIterations = 10

// RenderedMarker replaces the rendered page in the context.
const RenderedMarker = "[HTML content generated]"

// DecisionSource picks the next action from the conversation so far.
type DecisionSource interface {
	Decide(ctx context.Context, t Transcript) (Decision, error)
}

// BatchDecisionSource is implemented by sources that answer with several
// decisions at once. They are processed in order and anything after the
// first Terminal is discarded.
type BatchDecisionSource interface {
	DecideBatch(ctx context.Context, t Transcript) ([]Decision, error)
}

// Action is one dispatched tool call, as recorded in the journal.
type Action struct {
	SessionID string
	Kind      ToolKind
	Target    string
	OK        bool
	Outcome   string
	Duration  time.Duration
}

// Journal records dispatched tool calls. Errors are logged and ignored.
type Journal interface {
	RecordAction(ctx context.Context, a Action) error
}

// Observer receives loop measurements.
type Observer interface {
	ObserveDecision(d time.Duration, err error)
	ObserveToolCall(kind ToolKind, ok bool, d time.Duration)
	ObserveRun(iterations int, err error)
}

// Options configures an Agent.
type Options struct {
	MaxIterations int

	// CompactAfterRender collapses a finished interaction into a single
	// summary turn.
	CompactAfterRender bool

	Journal  Journal
	Observer Observer
}

// Agent runs interactions. It holds no per-session state, so one Agent
// serves every session.
type Agent struct {
	source        DecisionSource
	maxIterations int
	compact       bool
	journal       Journal
	observer      Observer
}

// New creates an Agent using source for decisions.
func New(source DecisionSource, opts Options) *Agent {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Agent{
		source:        source,
		maxIterations: maxIterations,
		compact:       opts.CompactAfterRender,
		journal:       opts.Journal,
		observer:      opts.Observer,
	}
}

type sessionKey struct{}

// WithSessionID tags ctx with the session the interaction belongs to.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session id set by WithSessionID.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Run processes one user interaction and returns the rendered output of
// the terminal decision. Tool calls are executed one at a time, each
// result folded into conv before the next decision is requested. Every
// error is a *Failure.
func (a *Agent) Run(
	ctx context.Context,
	conv *ConversationContext,
	mbox mailbox.Client,
	interaction string,
) (string, error) {
	log := zerolog.Ctx(ctx)

	conv.ClearNotices()
	conv.Append(RoleUser, interaction)
	appended := 1

	guard := NewRepetitionGuard()
	lastSummary := ""

	var pending []Decision
	iteration := 0

	fail := func(err error) (string, error) {
		log.Warn().Err(err).Int("iteration", iteration).Msg("interaction failed")
		if a.observer != nil {
			a.observer.ObserveRun(iteration, err)
		}
		return "", &Failure{Iteration: iteration, Err: err}
	}

	for {
		if iteration >= a.maxIterations {
			return fail(fmt.Errorf("%w: %d decisions", ErrIterationLimitExceeded, a.maxIterations))
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		if len(pending) == 0 {
			batch, err := a.decide(ctx, conv.Transcript())
			if err != nil {
				return fail(err)
			}
			pending = batch
		}

		decision := pending[0]
		pending = pending[1:]
		iteration++

		switch d := decision.(type) {
		case Terminal:
			conv.Append(RoleAssistant, RenderedMarker)
			appended++
			if a.compact {
				conv.ReplaceTail(appended, Turn{
					Role:    RoleUser,
					Content: compactSummary(interaction, lastSummary),
				})
			}
			conv.ClearNotices()

			log.Debug().Int("iteration", iteration).Msg("rendered output")
			if a.observer != nil {
				a.observer.ObserveRun(iteration, nil)
			}
			return d.Output, nil

		case ToolCall:
			result, err := a.execute(ctx, mbox, d)
			if err != nil {
				return fail(err)
			}

			summary := Format(result, d.Kind())
			conv.Append(RoleAssistant, summary)
			appended++
			lastSummary = summary

			if count, warning := guard.Observe(d.Kind()); warning != "" {
				log.Info().Str("tool", d.Kind().String()).Int("count", count).Msg("repeated tool call")
				conv.SetNotice(d.Kind(), warning)
			}

		default:
			return fail(fmt.Errorf("%w: unexpected decision %T", ErrDecisionUnavailable, decision))
		}
	}
}

// decide asks the source for the next decisions. A single-decision
// source yields a batch of one.
func (a *Agent) decide(ctx context.Context, t Transcript) ([]Decision, error) {
	start := time.Now()

	var batch []Decision
	var err error
	if bs, ok := a.source.(BatchDecisionSource); ok {
		batch, err = bs.DecideBatch(ctx, t)
	} else {
		var d Decision
		d, err = a.source.Decide(ctx, t)
		if d != nil {
			batch = []Decision{d}
		}
	}

	if err == nil && len(batch) == 0 {
		err = fmt.Errorf("%w: source returned no decision", ErrDecisionUnavailable)
	} else if err != nil {
		err = fmt.Errorf("%w: %w", ErrDecisionUnavailable, err)
	}

	if a.observer != nil {
		a.observer.ObserveDecision(time.Since(start), err)
	}
	return batch, err
}

// execute dispatches call and reports it to the journal and observer.
func (a *Agent) execute(ctx context.Context, mbox mailbox.Client, call ToolCall) (ToolResult, error) {
	log := zerolog.Ctx(ctx).With().
		Str("tool", call.Kind().String()).
		Str("target", targetOf(call)).
		Logger()

	start := time.Now()
	result, err := Dispatch(ctx, mbox, call)
	if err != nil {
		return ToolResult{}, err
	}
	elapsed := time.Since(start)

	if result.Failed() {
		log.Warn().Err(result.Err()).Dur("duration", elapsed).Msg("tool call failed")
	} else {
		log.Debug().Dur("duration", elapsed).Msg("tool call completed")
	}

	if a.observer != nil {
		a.observer.ObserveToolCall(call.Kind(), !result.Failed(), elapsed)
	}
	if a.journal != nil {
		action := Action{
			SessionID: SessionID(ctx),
			Kind:      call.Kind(),
			Target:    targetOf(call),
			OK:        !result.Failed(),
			Outcome:   outcomeOf(result),
			Duration:  elapsed,
		}
		if err := a.journal.RecordAction(ctx, action); err != nil {
			log.Error().Err(err).Msg("recording action")
		}
	}

	return result, nil
}

func compactSummary(interaction, information string) string {
	if information == "" {
		information = "None"
	}
	return fmt.Sprintf(
		"User Interaction: %s\nInformation: %s\nHTML Generated: %s",
		interaction, information, RenderedMarker,
	)
}
