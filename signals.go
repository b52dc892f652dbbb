package council

import "github.com/zoobzio/capitan"

// Signal definitions for council deliberation events.
// Signals follow the pattern: council.<entity>.<event>.
var (
	// Run lifecycle signals.
	RunStarted = capitan.NewSignal(
		"council.run.started",
		"Deliberation run began with question and roster",
	)
	RunCompleted = capitan.NewSignal(
		"council.run.completed",
		"Deliberation produced a final answer",
	)
	RunFailed = capitan.NewSignal(
		"council.run.failed",
		"Deliberation aborted before producing an answer",
	)

	// Member call signals.
	MemberQueried = capitan.NewSignal(
		"council.member.queried",
		"Member call dispatched to its backend",
	)
	MemberResponded = capitan.NewSignal(
		"council.member.responded",
		"Member call returned a usable reply",
	)
	MemberFailed = capitan.NewSignal(
		"council.member.failed",
		"Member call failed, timed out, or returned nothing usable",
	)

	// Review signals.
	ReviewParsed = capitan.NewSignal(
		"council.review.parsed",
		"Review reply yielded a ranking",
	)
	ReviewDiscarded = capitan.NewSignal(
		"council.review.discarded",
		"Review reply contained no usable ranking",
	)

	// Synthesis signals.
	SynthesisStarted = capitan.NewSignal(
		"council.synthesis.started",
		"Aggregator synthesis call dispatched",
	)
	SynthesisCompleted = capitan.NewSignal(
		"council.synthesis.completed",
		"Aggregator produced the final answer",
	)

	// Archive signals.
	ArchiveSaved = capitan.NewSignal(
		"council.archive.saved",
		"Run transcript persisted",
	)
	ArchiveFailed = capitan.NewSignal(
		"council.archive.failed",
		"Run transcript could not be persisted",
	)
)

// Field keys for council event data.
var (
	// Run metadata.
	FieldTraceID     = capitan.NewStringKey("trace_id")
	FieldAggregator  = capitan.NewStringKey("aggregator")
	FieldMemberCount = capitan.NewIntKey("member_count")

	// Call metadata.
	FieldMember = capitan.NewStringKey("member")
	FieldStage  = capitan.NewStringKey("stage") // query, review, synthesis

	// Progress metrics.
	FieldResponseCount = capitan.NewIntKey("response_count")
	FieldRankingCount  = capitan.NewIntKey("ranking_count")
	FieldRankingSize   = capitan.NewIntKey("ranking_size")
	FieldFailureCount  = capitan.NewIntKey("failure_count")
	FieldQuestionSize  = capitan.NewIntKey("question_size") // character count
	FieldAnswerSize    = capitan.NewIntKey("answer_size")   // character count

	// Timing.
	FieldCallDuration = capitan.NewDurationKey("call_duration")
	FieldRunDuration  = capitan.NewDurationKey("run_duration")

	// Error information.
	FieldError = capitan.NewErrorKey("error")
)
