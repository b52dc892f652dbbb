package counciltest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/council"
)

func TestScriptedGatewayDefaults(t *testing.T) {
	c, _ := NewTestCouncil(t, "m1", "m2", "m3")

	result, err := c.Run(context.Background(), "test question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Answer != "synthesized answer" {
		t.Errorf("expected default answer, got %q", result.Answer)
	}
	if len(result.Responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(result.Responses))
	}
	if len(result.Rankings) != 3 {
		t.Fatalf("expected 3 rankings, got %d", len(result.Rankings))
	}
	if len(result.Failures) != 0 {
		t.Errorf("expected no failures, got %v", result.Failures)
	}

	RequireResponse(t, result, "m1", "answer from m1")

	// Default reviews rank every peer, so each ranking is complete.
	for reviewer, ranking := range result.Rankings {
		if len(ranking.Entries) != 2 {
			t.Errorf("expected 2 entries from %q, got %d", reviewer, len(ranking.Entries))
		}
	}
}

func TestScriptedGatewayScripting(t *testing.T) {
	c, gw := NewTestCouncil(t, "m1", "m2", "m3")
	gw.Answer("custom synthesis").
		QueryReply("m2", "custom answer").
		ReviewReply("m1", ScriptedReview("B", "A"))

	result, err := c.Run(context.Background(), "test question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Answer != "custom synthesis" {
		t.Errorf("expected custom answer, got %q", result.Answer)
	}
	RequireResponse(t, result, "m2", "custom answer")

	// m1 reviews peers m2 (A) and m3 (B); [B, A] means m3 first.
	RequireRankingOrder(t, result, "m1", "m3", "m2")
}

func TestScriptedGatewayFailWith(t *testing.T) {
	c, gw := NewTestCouncil(t, "m1", "m2", "m3")
	gw.FailWith("m3", errors.New("backend down"))

	result, err := c.Run(context.Background(), "test question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(result.Responses))
	}
	RequireFailure(t, result, "m3", council.StageQuery)

	if gw.CallCount("m3") != 1 {
		t.Errorf("expected 1 call to failed member, got %d", gw.CallCount("m3"))
	}
}

func TestScriptedGatewayFailReviewsWith(t *testing.T) {
	c, gw := NewTestCouncil(t, "m1", "m2", "m3")
	gw.FailReviewsWith("m2", errors.New("backend down"))

	result, err := c.Run(context.Background(), "test question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// m2 still answers; only its review is lost.
	RequireResponse(t, result, "m2", "answer from m2")
	if len(result.Rankings) != 2 {
		t.Fatalf("expected 2 rankings, got %d", len(result.Rankings))
	}
	RequireFailure(t, result, "m2", council.StageReview)
}

func TestScriptedGatewayDelayHonorsContext(t *testing.T) {
	gw := NewScriptedGateway("m1")
	gw.Delay("m1", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := gw.Invoke(ctx, "m1", "test prompt")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) >= time.Second {
		t.Error("delay did not honor context cancellation")
	}
}

func TestScriptedGatewayCalls(t *testing.T) {
	c, gw := NewTestCouncil(t, "m1", "m2")

	if _, err := c.Run(context.Background(), "test question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 query calls, 2 review calls, 1 synthesis call to the aggregator.
	calls := gw.Calls()
	if len(calls) != 5 {
		t.Fatalf("expected 5 calls, got %d", len(calls))
	}
	if gw.CallCount("m1") != 3 {
		t.Errorf("expected 3 calls to aggregator, got %d", gw.CallCount("m1"))
	}
	if gw.CallCount("m2") != 2 {
		t.Errorf("expected 2 calls to m2, got %d", gw.CallCount("m2"))
	}
}

func TestMemoryArchive(t *testing.T) {
	ctx := context.Background()
	archive := NewMemoryArchive()

	c, _ := NewTestCouncil(t, "m1", "m2", "m3")
	c = c.WithArchive(archive)

	result, err := c.Run(ctx, "archived question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if archive.SaveCount() != 1 {
		t.Fatalf("expected 1 stored run, got %d", archive.SaveCount())
	}

	t.Run("GetRun", func(t *testing.T) {
		run, turns, err := archive.GetRun(ctx, result.TraceID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.Question != "archived question" {
			t.Errorf("unexpected question: %q", run.Question)
		}
		if run.Answer != result.Answer {
			t.Errorf("unexpected answer: %q", run.Answer)
		}

		// 3 responses then 3 rankings, positions increasing.
		if len(turns) != 6 {
			t.Fatalf("expected 6 turns, got %d", len(turns))
		}
		for i, turn := range turns {
			if turn.Position != i {
				t.Errorf("turn %d: expected position %d, got %d", i, i, turn.Position)
			}
		}
		if turns[0].Kind != council.TurnResponse || turns[0].Member != "m1" {
			t.Errorf("unexpected first turn: %+v", turns[0])
		}
		if turns[3].Kind != council.TurnRanking {
			t.Errorf("unexpected fourth turn: %+v", turns[3])
		}
	})

	t.Run("GetRun missing", func(t *testing.T) {
		if _, _, err := archive.GetRun(ctx, "absent-trace"); err == nil {
			t.Fatal("expected error for missing run")
		}
	})

	t.Run("ListRuns", func(t *testing.T) {
		second, err := c.Run(ctx, "second question")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		runs, err := archive.ListRuns(ctx, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[0].TraceID != second.TraceID {
			t.Errorf("expected newest run first, got %q", runs[0].TraceID)
		}

		limited, err := archive.ListRuns(ctx, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d runs", len(limited))
		}
	})

	t.Run("DeleteRun", func(t *testing.T) {
		if err := archive.DeleteRun(ctx, result.TraceID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, _, err := archive.GetRun(ctx, result.TraceID); err == nil {
			t.Fatal("expected run to be gone")
		}
		if err := archive.DeleteRun(ctx, result.TraceID); err == nil {
			t.Fatal("expected error deleting twice")
		}
	})
}

func TestNewTestCouncil(t *testing.T) {
	c, gw := NewTestCouncil(t, "m1", "m2")

	if c == nil {
		t.Fatal("expected council, got nil")
	}
	if gw == nil {
		t.Fatal("expected gateway, got nil")
	}
	if c.Roster().Aggregator.ID != "m1" {
		t.Errorf("expected first member to aggregate, got %q", c.Roster().Aggregator.ID)
	}
}

func TestScriptedReview(t *testing.T) {
	if got := ScriptedReview("B", "A", "C"); got != "RANKING: [B, A, C]" {
		t.Errorf("unexpected review text: %q", got)
	}
	if got := ScriptedReview("A"); got != "RANKING: [A]" {
		t.Errorf("unexpected review text: %q", got)
	}
}

func TestRequireHelpers(t *testing.T) {
	c, _ := NewTestCouncil(t, "m1", "m2", "m3")

	result, err := c.Run(context.Background(), "test question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// These should not fail.
	RequireResponse(t, result, "m3", "answer from m3")
	RequireRankingOrder(t, result, "m1", "m2", "m3")
}
