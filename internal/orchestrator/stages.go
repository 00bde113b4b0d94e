package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/model"
	"github.com/dusk-indust/deepresearch/internal/schema"
	"github.com/dusk-indust/deepresearch/internal/state"
)

// Message names that mark pipeline-authored entries in the logs.
const (
	clarificationName = "clarification"
	verificationName  = "verification"
	supervisorName    = "supervisor"
)

func briefMessageID(sessionID string) string { return "brief-" + sessionID }

// clarify runs the clarification gate. A question pauses the session with
// ErrAwaitingInput; a verification is recorded and the run proceeds.
func (p *Pipeline) clarify(ctx context.Context, sess *Session) error {
	conv := sess.State.Conversation.Messages()
	if !p.cfg.AllowClarification {
		return nil
	}
	if asked := countNamed(conv, state.RoleAssistant, clarificationName); asked >= p.cfg.MaxClarifications {
		p.logger.Info("clarification limit reached",
			zap.String("session", sess.ID), zap.Int("asked", asked))
		return nil
	}

	raw, err := p.generate(ctx, model.Request{Schema: schema.NameClarifyWithUser, Messages: conv})
	if err != nil {
		return err
	}
	decision, err := schema.DecodeClarification(raw)
	if err != nil {
		return err
	}

	if decision.NeedClarification {
		q := state.AssistantMessage(decision.Question)
		q.Name = clarificationName
		if err := sess.State.MergeConversation(q); err != nil {
			return err
		}
		sess.Question = decision.Question
		sess.Phase = checkpoint.PhaseAwaitingInput
		return ErrAwaitingInput
	}

	sess.Question = ""
	sess.Verification = decision.Verification
	if strings.TrimSpace(decision.Verification) == "" {
		return nil
	}
	v := state.AssistantMessage(decision.Verification)
	v.Name = verificationName
	return sess.State.MergeConversation(v)
}

// brief extracts the research brief and seeds the supervisor log with it.
// An invalid brief leaves the state untouched.
func (p *Pipeline) brief(ctx context.Context, sess *Session) error {
	raw, err := p.generate(ctx, model.Request{
		Schema:   schema.NameResearchQuestion,
		Messages: sess.State.Conversation.Messages(),
	})
	if err != nil {
		return err
	}
	q, err := schema.DecodeResearchQuestion(raw)
	if err != nil {
		return err
	}
	if err := sess.State.SetResearchBrief(q.ResearchBrief); err != nil {
		return err
	}
	return sess.State.SeedSupervisor(state.Message{
		ID:        briefMessageID(sess.ID),
		Role:      state.RoleUser,
		Content:   q.ResearchBrief,
		CreatedAt: p.now(),
	})
}

// supervise runs plan, fan-out and merge rounds until the plan reports
// completion or the round limit is hit. Contributions are merged as each
// task finishes.
func (p *Pipeline) supervise(ctx context.Context, sess *Session) error {
	brief, _ := sess.State.ResearchBrief()

	for round := 1; round <= p.cfg.MaxSupervisorRounds; round++ {
		raw, err := p.generate(ctx, model.Request{
			Schema:   schema.NameResearchPlan,
			Messages: sess.State.Supervisor.Messages(),
			Input:    brief,
		})
		if err != nil {
			return err
		}
		plan, err := schema.DecodeResearchPlan(raw)
		if err != nil {
			return err
		}

		if len(plan.Topics) > p.cfg.MaxTopicsPerRound {
			p.logger.Info("truncating research plan",
				zap.String("session", sess.ID),
				zap.Int("round", round),
				zap.Int("topics", len(plan.Topics)),
				zap.Int("limit", p.cfg.MaxTopicsPerRound))
			plan.Topics = plan.Topics[:p.cfg.MaxTopicsPerRound]
		}

		if len(plan.Topics) > 0 {
			if err := p.runRound(ctx, sess, round, brief, plan); err != nil {
				return err
			}
		}
		if plan.Complete {
			break
		}
	}

	if sess.State.RawNotes.Len() == 0 {
		return fmt.Errorf("supervise: %w", ErrNoContributions)
	}
	return nil
}

func (p *Pipeline) runRound(ctx context.Context, sess *Session, round int, brief string, plan schema.ResearchPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("supervise: encode plan: %w", err)
	}
	if err := sess.State.MergeSupervisor(state.Message{
		ID:        fmt.Sprintf("%s-plan-%d", sess.ID, round),
		Role:      state.RoleAssistant,
		Name:      supervisorName,
		Content:   strings.Join(plan.Topics, "\n"),
		Data:      data,
		CreatedAt: p.now(),
	}); err != nil {
		return err
	}

	tasks := make([]ResearchTask, len(plan.Topics))
	for i, topic := range plan.Topics {
		tasks[i] = ResearchTask{
			ID:        fmt.Sprintf("%s-r%d-t%d", sess.ID, round, i+1),
			SessionID: sess.ID,
			Brief:     brief,
			Topic:     topic,
		}
	}

	var (
		applied  atomic.Int32
		fatalMu  sync.Mutex
		fatalErr error
	)
	p.fanout.Run(ctx, tasks, func(res ResearchResult) {
		if res.Err != nil {
			return
		}
		if err := sess.State.ApplyContribution(res.Contribution); err != nil {
			p.logger.Warn("dropping contribution",
				zap.String("session", sess.ID),
				zap.String("task", res.Task.ID),
				zap.String("topic", res.Task.Topic),
				zap.Error(err))
			if isOrdering(err) {
				fatalMu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				fatalMu.Unlock()
			}
			return
		}
		applied.Add(1)
	})

	sess.Rounds = round
	if fatalErr != nil {
		return fatalErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("supervisor round finished",
		zap.String("session", sess.ID),
		zap.Int("round", round),
		zap.Int("topics", len(tasks)),
		zap.Int32("merged", applied.Load()))
	if applied.Load() == 0 {
		return fmt.Errorf("supervise: round %d: %w", round, ErrNoContributions)
	}
	return p.save(ctx, sess)
}

// reduce distils raw notes into notes and writes the final report.
func (p *Pipeline) reduce(ctx context.Context, sess *Session) error {
	if sess.State.Notes.Len() == 0 {
		notes := Distill(sess.State.RawNotes.Items())
		if len(notes) == 0 {
			return fmt.Errorf("reduce: raw notes are blank: %w", ErrNoContributions)
		}
		if err := sess.State.MergeNotes(notes...); err != nil {
			return err
		}
	}
	notes := sess.State.Notes.Items()
	brief, _ := sess.State.ResearchBrief()

	raw, err := p.generate(ctx, model.Request{
		Schema: schema.NameFinalReport,
		Messages: []state.Message{{
			ID:      briefMessageID(sess.ID),
			Role:    state.RoleUser,
			Content: brief,
		}},
		Input: bulletList(notes),
	})
	if err != nil {
		return err
	}
	report, err := schema.DecodeFinalReport(raw)
	if err != nil {
		return err
	}

	topics := topicSections(sess.State.Supervisor.Messages())
	for _, issue := range CheckCoherence(topics) {
		p.logger.Warn("coherence issue",
			zap.String("session", sess.ID),
			zap.String("a", issue.SectionA),
			zap.String("b", issue.SectionB),
			zap.String("issue", issue.Description))
	}

	merged, err := NewMerger(ReportMergePlan).Merge([]Section{
		{Name: "summary", Content: report.Report},
		{Name: "findings", Content: findingsMarkdown(sess.State.Supervisor.Messages())},
	})
	if err != nil {
		return fmt.Errorf("reduce: %w", err)
	}
	return sess.State.SetFinalReport(merged)
}

func (p *Pipeline) generate(ctx context.Context, req model.Request) (json.RawMessage, error) {
	start := time.Now()
	raw, err := p.model.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", req.Schema, err)
	}
	p.logger.Debug("model call", zap.String("schema", string(req.Schema)), zap.Duration("duration", time.Since(start)))
	return raw, nil
}

func countNamed(msgs []state.Message, role state.Role, name string) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role && m.Name == name {
			n++
		}
	}
	return n
}

func bulletList(items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it)
	}
	return b.String()
}

// topicSections turns the tool messages of the supervisor log into one
// section per researched topic. Content holds the summary followed by the
// raw notes carried in the message payload.
func topicSections(msgs []state.Message) []Section {
	var out []Section
	for _, m := range msgs {
		if m.Role != state.RoleTool {
			continue
		}
		topic, summary := splitTopic(m.Content)
		content := summary
		var f schema.ResearchFindings
		if len(m.Data) > 0 && json.Unmarshal(m.Data, &f) == nil && len(f.Notes) > 0 {
			content += "\n" + strings.Join(f.Notes, "\n")
		}
		out = append(out, Section{Name: topic, Content: content, Agent: m.Name})
	}
	return out
}

func splitTopic(content string) (topic, rest string) {
	first, rest, _ := strings.Cut(content, "\n")
	if t, ok := strings.CutPrefix(first, "Topic: "); ok {
		return strings.TrimSpace(t), strings.TrimSpace(rest)
	}
	return "research", strings.TrimSpace(content)
}

func findingsMarkdown(msgs []state.Message) string {
	var b strings.Builder
	b.WriteString("## Findings by topic")
	n := 0
	for _, m := range msgs {
		if m.Role != state.RoleTool {
			continue
		}
		topic, summary := splitTopic(m.Content)
		fmt.Fprintf(&b, "\n\n### %s\n\n%s", topic, summary)
		n++
	}
	if n == 0 {
		b.WriteString("\n\n_No per-topic findings were recorded._")
	}
	return b.String()
}
