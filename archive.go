package council

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Archive persists finished council runs. It is a write-behind transcript
// store: deliberation never reads from it, so attaching one cannot change
// what a run produces.
type Archive interface {
	// SaveRun persists a completed run and its turns.
	SaveRun(ctx context.Context, result *CouncilResult) error

	// GetRun loads a run and its turns by trace ID.
	GetRun(ctx context.Context, traceID string) (*RunRecord, []TurnRecord, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// DeleteRun removes a run and all its turns.
	DeleteRun(ctx context.Context, traceID string) error
}

// RunRecord is the stored form of one deliberation.
type RunRecord struct {
	ID         string    `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	TraceID    string    `db:"trace_id" type:"text" constraints:"notnull,unique"`
	Title      string    `db:"title" type:"text" constraints:"notnull"`
	Question   string    `db:"question" type:"text" constraints:"notnull"`
	Answer     string    `db:"answer" type:"text" constraints:"notnull"`
	Aggregator string    `db:"aggregator" type:"text" constraints:"notnull"`
	ElapsedMS  int64     `db:"elapsed_ms" type:"bigint" constraints:"notnull"`
	CreatedAt  time.Time `db:"created_at" type:"timestamp" constraints:"notnull"`
}

// Turn kinds stored in TurnRecord.Kind.
const (
	TurnResponse = "response"
	TurnRanking  = "ranking"
	TurnFailure  = "failure"
)

// TurnRecord is one member's contribution (or absence) within a stored
// run. Response turns carry the answer text; ranking turns carry the
// order as "a > b > c" with per-member reasoning in Metadata; failure
// turns carry the error text with the kind in Metadata.
type TurnRecord struct {
	ID        string            `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	RunID     string            `db:"run_id" type:"uuid" constraints:"notnull" references:"council_runs(id)"`
	Kind      string            `db:"kind" type:"text" constraints:"notnull"`
	Member    string            `db:"member" type:"text" constraints:"notnull"`
	Stage     string            `db:"stage" type:"text" constraints:"notnull"`
	Position  int               `db:"position" type:"integer" constraints:"notnull"`
	Content   string            `db:"content" type:"text" constraints:"notnull"`
	Metadata  map[string]string `db:"metadata" type:"jsonb" default:"'{}'"`
	CreatedAt time.Time         `db:"created_at" type:"timestamp" constraints:"notnull"`
}

// ToResult reconstructs the deliberation from stored records. Failure
// causes come back as opaque text errors; everything else round-trips.
func (r *RunRecord) ToResult(turns []TurnRecord) *CouncilResult {
	result := &CouncilResult{
		TraceID:    r.TraceID,
		Question:   r.Question,
		Answer:     r.Answer,
		Aggregator: r.Aggregator,
		Responses:  make(map[string]Response),
		Rankings:   make(map[string]Ranking),
		Elapsed:    time.Duration(r.ElapsedMS) * time.Millisecond,
	}

	for _, turn := range turns {
		switch turn.Kind {
		case TurnResponse:
			elapsed, _ := strconv.ParseInt(turn.Metadata["elapsed_ms"], 10, 64)
			result.Responses[turn.Member] = Response{
				Member:  turn.Member,
				Text:    turn.Content,
				Elapsed: time.Duration(elapsed) * time.Millisecond,
			}
		case TurnRanking:
			var entries []RankedEntry
			if turn.Content != "" {
				for _, member := range strings.Split(turn.Content, " > ") {
					entries = append(entries, RankedEntry{Member: member, Reason: turn.Metadata[member]})
				}
			}
			result.Rankings[turn.Member] = Ranking{Reviewer: turn.Member, Entries: entries}
		case TurnFailure:
			result.Failures = append(result.Failures, CallFailure{
				Member: turn.Member,
				Stage:  parseStage(turn.Stage),
				Err:    errors.New(turn.Content),
			})
		}
	}

	result.Aggregate = AggregateRankings(result.Rankings)
	return result
}

// runTitle derives a short display title from the question, the way a
// transcript list wants to show it.
func runTitle(question string) string {
	const limit = 80
	title := strings.Join(strings.Fields(question), " ")
	if len(title) > limit {
		title = title[:limit]
	}
	return title
}

// newRunRecords flattens a result into its stored form. Turn order is
// deterministic: responses sorted by member, then rankings sorted by
// reviewer, then failures as disclosed.
func newRunRecords(result *CouncilResult) (RunRecord, []TurnRecord) {
	now := time.Now()
	run := RunRecord{
		TraceID:    result.TraceID,
		Title:      runTitle(result.Question),
		Question:   result.Question,
		Answer:     result.Answer,
		Aggregator: result.Aggregator,
		ElapsedMS:  result.Elapsed.Milliseconds(),
		CreatedAt:  now,
	}

	var turns []TurnRecord
	position := 0
	add := func(kind, member, stage, content string, metadata map[string]string) {
		turns = append(turns, TurnRecord{
			Kind:      kind,
			Member:    member,
			Stage:     stage,
			Position:  position,
			Content:   content,
			Metadata:  metadata,
			CreatedAt: now,
		})
		position++
	}

	members := make([]string, 0, len(result.Responses))
	for id := range result.Responses {
		members = append(members, id)
	}
	sort.Strings(members)
	for _, id := range members {
		resp := result.Responses[id]
		add(TurnResponse, id, StageQuery.String(), resp.Text, map[string]string{
			"elapsed_ms": strconv.FormatInt(resp.Elapsed.Milliseconds(), 10),
		})
	}

	reviewers := make([]string, 0, len(result.Rankings))
	for id := range result.Rankings {
		reviewers = append(reviewers, id)
	}
	sort.Strings(reviewers)
	for _, id := range reviewers {
		ranking := result.Rankings[id]
		metadata := make(map[string]string, len(ranking.Entries))
		for _, entry := range ranking.Entries {
			if entry.Reason != "" {
				metadata[entry.Member] = entry.Reason
			}
		}
		add(TurnRanking, id, StageReview.String(), strings.Join(ranking.Order(), " > "), metadata)
	}

	for _, failure := range result.Failures {
		metadata := map[string]string{}
		var be *BackendError
		if errors.As(failure.Err, &be) {
			metadata["kind"] = be.Kind.String()
		}
		add(TurnFailure, failure.Member, failure.Stage.String(), failure.Err.Error(), metadata)
	}

	return run, turns
}
