package council

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// mockGateway implements Gateway with scripted per-member behavior.
// The stage is inferred from the prompt text: review and synthesis
// prompts carry fixed opening lines, anything else is a stage 1 query.
type mockGateway struct {
	queryReplies  map[string]string
	reviewReplies map[string]string
	answer        string

	errs       map[string]error // every call
	reviewErrs map[string]error // review calls only
	delays     map[string]time.Duration

	mu    sync.Mutex
	calls []gatewayCall
}

type gatewayCall struct {
	member string
	prompt string
}

func newMockGateway(members ...string) *mockGateway {
	g := &mockGateway{
		queryReplies:  make(map[string]string),
		reviewReplies: make(map[string]string),
		answer:        "final synthesis",
		errs:          make(map[string]error),
		reviewErrs:    make(map[string]error),
		delays:        make(map[string]time.Duration),
	}
	for _, m := range members {
		g.queryReplies[m] = "answer from " + m
	}
	return g
}

func (g *mockGateway) Invoke(ctx context.Context, member, prompt string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{member: member, prompt: prompt})
	delay := g.delays[member]
	err := g.errs[member]
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

	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case strings.HasPrefix(prompt, "You are reviewing answers"):
		if err := g.reviewErrs[member]; err != nil {
			return "", err
		}
		return g.reviewReplies[member], nil
	case strings.HasPrefix(prompt, "You are the aggregator"):
		return g.answer, nil
	default:
		return g.queryReplies[member], nil
	}
}

// callCount returns how many calls the member received.
func (g *mockGateway) callCount(member string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 0
	for _, c := range g.calls {
		if c.member == member {
			count++
		}
	}
	return count
}

// promptsFor returns the prompts sent to the member, in call order.
func (g *mockGateway) promptsFor(member string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var prompts []string
	for _, c := range g.calls {
		if c.member == member {
			prompts = append(prompts, c.prompt)
		}
	}
	return prompts
}

var _ Gateway = (*mockGateway)(nil)

// mockArchive implements Archive in memory for testing.
type mockArchive struct {
	mu     sync.Mutex
	saved  []*CouncilResult
	failed error
}

func (a *mockArchive) SaveRun(_ context.Context, result *CouncilResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed != nil {
		return a.failed
	}
	a.saved = append(a.saved, result)
	return nil
}

func (a *mockArchive) GetRun(_ context.Context, traceID string) (*RunRecord, []TurnRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.saved {
		if r.TraceID == traceID {
			run, turns := newRunRecords(r)
			return &run, turns, nil
		}
	}
	return nil, nil, fmt.Errorf("run not found: %s", traceID)
}

func (a *mockArchive) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	runs := make([]RunRecord, 0, len(a.saved))
	for i := len(a.saved) - 1; i >= 0 && len(runs) < limit; i-- {
		run, _ := newRunRecords(a.saved[i])
		runs = append(runs, run)
	}
	return runs, nil
}

func (a *mockArchive) DeleteRun(_ context.Context, traceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, r := range a.saved {
		if r.TraceID == traceID {
			a.saved = append(a.saved[:i], a.saved[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("run not found: %s", traceID)
}

func (a *mockArchive) savedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.saved)
}

var _ Archive = (*mockArchive)(nil)
