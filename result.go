package council

import (
	"sort"
	"time"
)

// Stage identifies which phase of a run an event or failure belongs to.
type Stage int

const (
	// StageQuery is stage 1: the question fans out to all participants.
	StageQuery Stage = iota + 1

	// StageReview is stage 2: responders rank each other's answers.
	StageReview

	// StageSynthesis is stage 3: the aggregator produces the final answer.
	StageSynthesis
)

// String returns the stage as a short lowercase token.
func (s Stage) String() string {
	switch s {
	case StageQuery:
		return "query"
	case StageReview:
		return "review"
	case StageSynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}

// parseStage is the inverse of Stage.String, for stored records.
func parseStage(s string) Stage {
	switch s {
	case "query":
		return StageQuery
	case "review":
		return StageReview
	case "synthesis":
		return StageSynthesis
	default:
		return 0
	}
}

// Response is one member's stage 1 answer.
type Response struct {
	Member  string
	Text    string
	Elapsed time.Duration
}

// RankedEntry is one position in a reviewer's ranking: the member placed
// there and the reviewer's reasoning for that placement, when it gave any.
type RankedEntry struct {
	Member string
	Reason string
}

// Ranking is one reviewer's ordering of its peers' answers, best to
// worst. Entries carry real member IDs; anonymous labels never leave the
// review stage.
type Ranking struct {
	Reviewer string
	Entries  []RankedEntry
}

// Order returns the ranked member IDs, best first.
func (r Ranking) Order() []string {
	ids := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		ids[i] = e.Member
	}
	return ids
}

// AggregateRank is a member's standing across all reviews: the mean of
// its positions (1 is best) and how many rankings mentioned it.
type AggregateRank struct {
	Member   string
	MeanRank float64
	Mentions int
}

// AggregateRankings folds per-reviewer rankings into overall standings,
// sorted best first. Members never mentioned in any ranking do not
// appear. Ties in mean rank break by member ID so the order is stable.
func AggregateRankings(rankings map[string]Ranking) []AggregateRank {
	type tally struct {
		sum      int
		mentions int
	}
	tallies := make(map[string]*tally)
	for _, ranking := range rankings {
		for pos, entry := range ranking.Entries {
			t := tallies[entry.Member]
			if t == nil {
				t = &tally{}
				tallies[entry.Member] = t
			}
			t.sum += pos + 1
			t.mentions++
		}
	}

	out := make([]AggregateRank, 0, len(tallies))
	for member, t := range tallies {
		out = append(out, AggregateRank{
			Member:   member,
			MeanRank: float64(t.sum) / float64(t.mentions),
			Mentions: t.mentions,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanRank != out[j].MeanRank {
			return out[i].MeanRank < out[j].MeanRank
		}
		return out[i].Member < out[j].Member
	})
	return out
}

// CallFailure discloses one member call that did not contribute to the
// result: who, at which stage, and why. Err is typically a *BackendError
// for transport failures or wraps ErrUnparsableReview for discarded
// reviews.
type CallFailure struct {
	Member string
	Stage  Stage
	Err    error
}

// CouncilResult is the terminal artifact of a run. Responses holds
// exactly the members that answered stage 1; Rankings holds one entry per
// review that parsed; Failures discloses everyone missing from either.
// A partial result is never silent: even with verbosity off, Failures
// survives.
type CouncilResult struct {
	TraceID    string
	Question   string
	Answer     string
	Aggregator string

	Responses map[string]Response
	Rankings  map[string]Ranking
	Aggregate []AggregateRank

	Failures []CallFailure
	Elapsed  time.Duration
}

// Complete reports whether every participant made it into Responses and
// every review parsed.
func (r *CouncilResult) Complete() bool {
	return len(r.Failures) == 0
}

// sortFailures orders disclosures by stage then member so results are
// reproducible regardless of goroutine completion order.
func sortFailures(failures []CallFailure) {
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Stage != failures[j].Stage {
			return failures[i].Stage < failures[j].Stage
		}
		return failures[i].Member < failures[j].Member
	})
}
