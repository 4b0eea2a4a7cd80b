package research

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/parallaxlabs/deepresearch/internal/metrics"
)

// EventSink receives stage-completion events for streaming observers. A nil
// sink disables streaming.
type EventSink interface {
	Publish(sessionID, stage, message string)
}

// Pipeline drives the research stages in their fixed order with the single
// retrieve<->coverage feedback edge. It holds no retrieval or LLM logic of
// its own; it only sequences stages and merges their patches.
type Pipeline struct {
	stages *Stages
	cfg    Config
	logger *zap.Logger
	events EventSink
	tracer oteltrace.Tracer
}

// NewPipeline assembles a pipeline around a stage set. events may be nil.
func NewPipeline(stages *Stages, cfg Config, logger *zap.Logger, events EventSink) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		stages: stages,
		cfg:    cfg.withDefaults(),
		logger: logger,
		events: events,
		tracer: otel.Tracer("deepresearch/pipeline"),
	}
}

type stageFunc func(ctx context.Context, st *State) (Patch, error)

// Run executes the pipeline to completion:
//
//	parse_claims -> entity_expand -> time_anchor -> generate_candidates ->
//	plan_queries -> retrieve -> timeline_align -> verify_claims ->
//	coverage_check -> {retrieve | score_candidates | finalize} ->
//	[score_candidates ->] finalize
//
// The only error returns are contract violations (duplicate claim ids,
// unknown claim-query keys); capability failures degrade inside stages.
func (p *Pipeline) Run(ctx context.Context, st *State) (*State, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		oteltrace.WithAttributes(attribute.String("session_id", st.SessionID)))
	defer span.End()

	start := time.Now()
	p.logger.Info("pipeline: starting",
		zap.String("session_id", st.SessionID),
		zap.String("question", truncateStr(st.Question, 120)),
	)

	linear := []struct {
		name string
		fn   stageFunc
	}{
		{"parse_claims", p.stages.ParseClaims},
		{"entity_expand", p.stages.EntityExpand},
		{"time_anchor", p.stages.TimeAnchor},
		{"generate_candidates", p.stages.GenerateCandidates},
		{"plan_queries", p.stages.PlanQueries},
	}
	for _, stage := range linear {
		if err := p.runStage(ctx, stage.name, stage.fn, st); err != nil {
			return st, err
		}
	}

	if err := validateState(st); err != nil {
		return st, err
	}

	for {
		if err := p.runStage(ctx, "retrieve", p.stages.Retrieve, st); err != nil {
			return st, err
		}
		if err := p.runStage(ctx, "timeline_align", p.stages.TimelineAlign, st); err != nil {
			return st, err
		}
		if err := p.runStage(ctx, "verify_claims", p.stages.VerifyClaims, st); err != nil {
			return st, err
		}

		decision, patch := p.stages.CoverageCheck(ctx, st)
		st.Apply(patch)
		p.publish(st, "coverage_check", string(decision.Action()))

		switch decision.Kind {
		case DecideRetry:
			continue
		case DecideFinalize:
			// skip scoring
		case DecideScore:
			if err := p.runStage(ctx, "score_candidates", p.stages.ScoreCandidates, st); err != nil {
				return st, err
			}
		default:
			// Unrecognized routing labels fail open into scoring so the
			// pipeline always terminates with an answer.
			p.logger.Warn("pipeline: unrecognized coverage decision, scoring",
				zap.Int("kind", int(decision.Kind)))
			if err := p.runStage(ctx, "score_candidates", p.stages.ScoreCandidates, st); err != nil {
				return st, err
			}
		}

		if err := p.runStage(ctx, "finalize", p.stages.Finalize, st); err != nil {
			return st, err
		}
		break
	}

	outcome := "answered"
	if st.FinalAnswerCanonical == "Unknown" {
		outcome = "unknown"
	}
	metrics.RunsCompleted.WithLabelValues(outcome).Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	p.logger.Info("pipeline: complete",
		zap.String("session_id", st.SessionID),
		zap.Int("retry_count", st.RetryCount),
		zap.Int("documents", len(st.Documents)),
		zap.String("canonical", truncateStr(st.FinalAnswerCanonical, 120)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return st, nil
}

// runStage executes one stage, applies its patch, and emits observability.
func (p *Pipeline) runStage(ctx context.Context, name string, fn stageFunc, st *State) error {
	ctx, span := p.tracer.Start(ctx, "stage."+name)
	defer span.End()

	start := time.Now()
	patch, err := fn(ctx, st)
	if err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	st.Apply(patch)

	metrics.StagesExecuted.WithLabelValues(name).Inc()
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	msg := ""
	if n := len(patch.Messages); n > 0 {
		msg = patch.Messages[n-1].Content
	}
	p.publish(st, name, msg)
	return nil
}

func (p *Pipeline) publish(st *State, stage, message string) {
	if p.events != nil {
		p.events.Publish(st.SessionID, stage, message)
	}
}

// validateState enforces the programming contracts that are fatal rather
// than degradable: unique claim ids and claim-query keys restricted to known
// claims.
func validateState(st *State) error {
	seen := make(map[string]struct{}, len(st.Claims))
	for _, c := range st.Claims {
		if c.ID == "" {
			return fmt.Errorf("claim with empty id")
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("claim id collision: %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	for cid := range st.ClaimQueries {
		if _, ok := seen[cid]; !ok {
			return fmt.Errorf("claim_queries key %q does not match any claim", cid)
		}
	}
	return nil
}
