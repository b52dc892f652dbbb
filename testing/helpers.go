// Package counciltest provides test utilities for council.
package counciltest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/council"
)

// ScriptedGateway implements council.Gateway with canned replies, so
// deliberations can run without any LLM backend. Every member answers
// by default; script failures and delays per member as needed.
type ScriptedGateway struct {
	mu            sync.Mutex
	queryReplies  map[string]string
	reviewReplies map[string]string
	answer        string
	errs          map[string]error
	reviewErrs    map[string]error
	delays        map[string]time.Duration
	calls         []GatewayCall
}

// GatewayCall records one Invoke made against a ScriptedGateway.
type GatewayCall struct {
	Member string
	Prompt string
}

// NewScriptedGateway creates a gateway where every member answers the
// question with "answer from <id>" and ranks all its peers in label
// order. Override per member with the setter methods.
func NewScriptedGateway(members ...string) *ScriptedGateway {
	gw := &ScriptedGateway{
		queryReplies:  make(map[string]string),
		reviewReplies: make(map[string]string),
		answer:        "synthesized answer",
		errs:          make(map[string]error),
		reviewErrs:    make(map[string]error),
		delays:        make(map[string]time.Duration),
	}

	peers := len(members) - 1
	labels := make([]string, 0, peers)
	for i := 0; i < peers; i++ {
		labels = append(labels, string(rune('A'+i)))
	}
	review := ScriptedReview(labels...)

	for _, m := range members {
		gw.queryReplies[m] = "answer from " + m
		gw.reviewReplies[m] = review
	}
	return gw
}

// ScriptedReview renders a parseable review reply ranking the given
// labels best to worst.
func ScriptedReview(labels ...string) string {
	return "RANKING: [" + strings.Join(labels, ", ") + "]"
}

// Answer sets the aggregator's synthesis reply.
func (g *ScriptedGateway) Answer(text string) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answer = text
	return g
}

// QueryReply sets one member's stage 1 answer.
func (g *ScriptedGateway) QueryReply(member, text string) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryReplies[member] = text
	return g
}

// ReviewReply sets one member's stage 2 review text.
func (g *ScriptedGateway) ReviewReply(member, text string) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reviewReplies[member] = text
	return g
}

// FailWith makes every call to the member fail with err.
func (g *ScriptedGateway) FailWith(member string, err error) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[member] = err
	return g
}

// FailReviewsWith makes only the member's review calls fail with err.
func (g *ScriptedGateway) FailReviewsWith(member string, err error) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reviewErrs[member] = err
	return g
}

// Delay makes every call to the member sleep first, honoring context
// cancellation. Useful for timeout and parallelism tests.
func (g *ScriptedGateway) Delay(member string, d time.Duration) *ScriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delays[member] = d
	return g
}

// Invoke implements council.Gateway.
func (g *ScriptedGateway) Invoke(ctx context.Context, member, prompt string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, GatewayCall{Member: member, Prompt: prompt})
	delay := g.delays[member]
	err := g.errs[member]
	reviewErr := g.reviewErrs[member]
	queryReply := g.queryReplies[member]
	reviewReply := g.reviewReplies[member]
	answer := g.answer
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}

	switch {
	case strings.HasPrefix(prompt, "You are reviewing answers"):
		if reviewErr != nil {
			return "", reviewErr
		}
		return reviewReply, nil
	case strings.HasPrefix(prompt, "You are the aggregator"):
		return answer, nil
	default:
		return queryReply, nil
	}
}

// Calls returns a snapshot of every Invoke made so far.
func (g *ScriptedGateway) Calls() []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	calls := make([]GatewayCall, len(g.calls))
	copy(calls, g.calls)
	return calls
}

// CallCount returns how many times the member was invoked.
func (g *ScriptedGateway) CallCount(member string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, call := range g.calls {
		if call.Member == member {
			count++
		}
	}
	return count
}

// Verify ScriptedGateway implements council.Gateway.
var _ council.Gateway = (*ScriptedGateway)(nil)

// MemoryArchive implements council.Archive for testing without a
// database. Stored runs are flattened the same way the real archive
// does: responses sorted by member, rankings sorted by reviewer, then
// failures.
type MemoryArchive struct {
	mu      sync.RWMutex
	results map[string]*council.CouncilResult
	order   []string
}

// NewMemoryArchive creates a new in-memory mock for council.Archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		results: make(map[string]*council.CouncilResult),
	}
}

// SaveRun stores the result keyed by trace ID.
func (a *MemoryArchive) SaveRun(_ context.Context, result *council.CouncilResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.results[result.TraceID]; !ok {
		a.order = append(a.order, result.TraceID)
	}
	a.results[result.TraceID] = result
	return nil
}

// GetRun loads a stored run and its turns by trace ID.
func (a *MemoryArchive) GetRun(_ context.Context, traceID string) (*council.RunRecord, []council.TurnRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result, ok := a.results[traceID]
	if !ok {
		return nil, nil, fmt.Errorf("run not found: %s", traceID)
	}

	run := runRecord(result)
	turns := turnRecords(run.ID, result)
	return &run, turns, nil
}

// ListRuns returns the most recent stored runs, newest first.
func (a *MemoryArchive) ListRuns(_ context.Context, limit int) ([]council.RunRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var runs []council.RunRecord
	for i := len(a.order) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, runRecord(a.results[a.order[i]]))
	}
	return runs, nil
}

// DeleteRun removes a stored run.
func (a *MemoryArchive) DeleteRun(_ context.Context, traceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.results[traceID]; !ok {
		return fmt.Errorf("run not found: %s", traceID)
	}
	delete(a.results, traceID)
	for i, id := range a.order {
		if id == traceID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return nil
}

// SaveCount returns how many distinct runs are stored.
func (a *MemoryArchive) SaveCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.results)
}

// Result returns the stored result for a trace ID, or nil.
func (a *MemoryArchive) Result(traceID string) *council.CouncilResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.results[traceID]
}

func runRecord(result *council.CouncilResult) council.RunRecord {
	return council.RunRecord{
		ID:         uuid.New().String(),
		TraceID:    result.TraceID,
		Title:      result.Question,
		Question:   result.Question,
		Answer:     result.Answer,
		Aggregator: result.Aggregator,
		ElapsedMS:  result.Elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	}
}

func turnRecords(runID string, result *council.CouncilResult) []council.TurnRecord {
	var turns []council.TurnRecord
	position := 0
	add := func(kind, member, stage, content string) {
		turns = append(turns, council.TurnRecord{
			ID:        uuid.New().String(),
			RunID:     runID,
			Kind:      kind,
			Member:    member,
			Stage:     stage,
			Position:  position,
			Content:   content,
			CreatedAt: time.Now(),
		})
		position++
	}

	members := make([]string, 0, len(result.Responses))
	for id := range result.Responses {
		members = append(members, id)
	}
	sort.Strings(members)
	for _, id := range members {
		add(council.TurnResponse, id, council.StageQuery.String(), result.Responses[id].Text)
	}

	reviewers := make([]string, 0, len(result.Rankings))
	for id := range result.Rankings {
		reviewers = append(reviewers, id)
	}
	sort.Strings(reviewers)
	for _, id := range reviewers {
		add(council.TurnRanking, id, council.StageReview.String(), strings.Join(result.Rankings[id].Order(), " > "))
	}

	for _, failure := range result.Failures {
		add(council.TurnFailure, failure.Member, failure.Stage.String(), failure.Err.Error())
	}

	return turns
}

// Verify MemoryArchive implements council.Archive.
var _ council.Archive = (*MemoryArchive)(nil)

// NewTestCouncil creates a council over a scripted gateway. The first
// member aggregates. Returns the gateway for further scripting.
func NewTestCouncil(t *testing.T, members ...string) (*council.Council, *ScriptedGateway) {
	t.Helper()
	gw := NewScriptedGateway(members...)
	roster, err := council.NewRoster(members, members[0])
	if err != nil {
		t.Fatalf("failed to build test roster: %v", err)
	}
	c, err := council.New(gw, roster)
	if err != nil {
		t.Fatalf("failed to build test council: %v", err)
	}
	return c, gw
}

// RequireResponse asserts that the member answered with the expected text.
func RequireResponse(t *testing.T, result *council.CouncilResult, member, expected string) {
	t.Helper()
	resp, ok := result.Responses[member]
	if !ok {
		t.Fatalf("expected response from %q, got none", member)
	}
	if resp.Text != expected {
		t.Fatalf("expected response %q from %q, got %q", expected, member, resp.Text)
	}
}

// RequireRankingOrder asserts the reviewer ranked members in the given order.
func RequireRankingOrder(t *testing.T, result *council.CouncilResult, reviewer string, order ...string) {
	t.Helper()
	ranking, ok := result.Rankings[reviewer]
	if !ok {
		t.Fatalf("expected ranking from %q, got none", reviewer)
	}
	got := ranking.Order()
	if len(got) != len(order) {
		t.Fatalf("expected ranking %v from %q, got %v", order, reviewer, got)
	}
	for i := range order {
		if got[i] != order[i] {
			t.Fatalf("expected ranking %v from %q, got %v", order, reviewer, got)
		}
	}
}

// RequireFailure asserts that the member was disclosed as failed in the
// given stage.
func RequireFailure(t *testing.T, result *council.CouncilResult, member string, stage council.Stage) {
	t.Helper()
	for _, failure := range result.Failures {
		if failure.Member == member && failure.Stage == stage {
			return
		}
	}
	t.Fatalf("expected %s failure for %q, got %v", stage, member, result.Failures)
}
