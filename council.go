package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Council coordinates a three-stage deliberation across a fixed roster.
// Construct with New, configure with the builder methods, then call Run
// as many times as needed; runs share nothing but the configuration.
//
// Builder methods are meant for setup and are not synchronized with
// in-flight runs.
type Council struct {
	gateway Gateway
	roster  Roster

	timeout              time.Duration
	temperature          float32
	synthesisTemperature float32
	verbose              bool
	limiter              *pipz.RateLimiter[*exchange]
	archive              Archive
}

// New creates a council over the given gateway and roster.
//
// Example:
//
//	roster, _ := council.NewRoster(models, models[0])
//	c, err := council.New(gateway, roster)
//	result, err := c.Run(ctx, question)
func New(gateway Gateway, roster Roster) (*Council, error) {
	if gateway == nil {
		return nil, ErrNoGateway
	}
	if err := roster.validate(); err != nil {
		return nil, err
	}
	return &Council{
		gateway:              gateway,
		roster:               roster,
		timeout:              DefaultTimeout,
		temperature:          DefaultTemperature,
		synthesisTemperature: DefaultSynthesisTemperature,
		verbose:              true,
	}, nil
}

// Run executes one deliberation:
//
//  1. The question fans out to every participant concurrently. Fewer
//     than MinResponses survivors aborts with ErrInsufficientResponses.
//  2. Each responder ranks the others' answers under anonymous labels.
//     Call and parse failures here are disclosed, never fatal.
//  3. The aggregator synthesizes the final answer. Failure here aborts
//     with ErrSynthesisFailed.
//
// Every member call runs in its own goroutine with an independent
// timeout; one member's failure never cancels another's call. The result
// discloses every member that went missing, regardless of verbosity.
func (c *Council) Run(ctx context.Context, question string) (*CouncilResult, error) {
	start := time.Now()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	traceID := uuid.New().String()
	capitan.Emit(ctx, RunStarted,
		FieldTraceID.Field(traceID),
		FieldQuestionSize.Field(len(question)),
		FieldMemberCount.Field(c.roster.Size()),
		FieldAggregator.Field(c.roster.Aggregator.ID),
	)

	// Stage 1: collection.
	callCtx := WithTemperature(ctx, c.temperature)
	prompts := make(map[string]string, c.roster.Size())
	for _, m := range c.roster.Participants {
		prompts[m.ID] = BuildQueryPrompt(question)
	}
	responses, failures := c.fanOut(callCtx, traceID, StageQuery, prompts)

	if len(responses) < MinResponses {
		err := c.insufficient(responses, failures)
		c.emitRunFailed(ctx, traceID, StageQuery, start, err)
		return nil, err
	}

	// Stage 2: blind review among the responders.
	rankings, reviewFailures := c.review(callCtx, traceID, question, responses)
	failures = append(failures, reviewFailures...)

	// Stage 3: synthesis. No fallback; without it there is no answer.
	answer, err := c.synthesize(ctx, traceID, question, responses, rankings)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
		c.emitRunFailed(ctx, traceID, StageSynthesis, start, err)
		return nil, err
	}

	sortFailures(failures)
	result := &CouncilResult{
		TraceID:    traceID,
		Question:   question,
		Answer:     answer,
		Aggregator: c.roster.Aggregator.ID,
		Responses:  responses,
		Rankings:   rankings,
		Aggregate:  AggregateRankings(rankings),
		Failures:   failures,
		Elapsed:    time.Since(start),
	}

	c.save(ctx, result)

	capitan.Emit(ctx, RunCompleted,
		FieldTraceID.Field(traceID),
		FieldRunDuration.Field(result.Elapsed),
		FieldResponseCount.Field(len(responses)),
		FieldRankingCount.Field(len(rankings)),
		FieldFailureCount.Field(len(failures)),
		FieldAnswerSize.Field(len(answer)),
	)

	if !c.verbose {
		trimmed := *result
		trimmed.Responses = nil
		trimmed.Rankings = nil
		trimmed.Aggregate = nil
		return &trimmed, nil
	}
	return result, nil
}

// exchange is the unit of work for one member call. It flows through the
// per-call pipz chain so rate limiting and timeout compose.
type exchange struct {
	member string
	prompt string
	reply  string
}

// call performs one gateway invocation under the council's per-call
// controls. The timeout actively cancels the in-flight call; a reply
// arriving after the deadline is discarded with the error, never merged.
func (c *Council) call(ctx context.Context, member, prompt string) (string, error) {
	invoke := pipz.Apply(pipz.Name(member), func(ctx context.Context, ex *exchange) (*exchange, error) {
		reply, err := c.gateway.Invoke(ctx, ex.member, ex.prompt)
		if err != nil {
			return ex, err
		}
		ex.reply = reply
		return ex, nil
	})

	var chain pipz.Chainable[*exchange] = pipz.NewTimeout(pipz.Name(member), invoke, c.timeout)
	if c.limiter != nil {
		chain = pipz.NewSequence(pipz.Name(member), c.limiter, chain)
	}

	ex, err := chain.Process(ctx, &exchange{member: member, prompt: prompt})
	if err != nil {
		return "", classifyBackendError(member, err)
	}
	if strings.TrimSpace(ex.reply) == "" {
		return "", &BackendError{Member: member, Kind: BackendMalformed, Err: errors.New("empty reply")}
	}
	return ex.reply, nil
}

// memberResult carries one call outcome off its goroutine.
type memberResult struct {
	member  string
	reply   string
	elapsed time.Duration
	err     error
}

// fanOut dispatches one call per member concurrently and collects the
// outcomes. Calls fail independently: a member's error is recorded while
// its siblings run to their own deadlines.
func (c *Council) fanOut(ctx context.Context, traceID string, stage Stage, prompts map[string]string) (map[string]Response, []CallFailure) {
	results := make(chan memberResult, len(prompts))
	var wg sync.WaitGroup
	wg.Add(len(prompts))

	for member, prompt := range prompts {
		go func(member, prompt string) {
			defer wg.Done()

			capitan.Emit(ctx, MemberQueried,
				FieldTraceID.Field(traceID),
				FieldStage.Field(stage.String()),
				FieldMember.Field(member),
			)

			callStart := time.Now()
			reply, err := c.call(ctx, member, prompt)
			elapsed := time.Since(callStart)

			if err != nil {
				capitan.Error(ctx, MemberFailed,
					FieldTraceID.Field(traceID),
					FieldStage.Field(stage.String()),
					FieldMember.Field(member),
					FieldCallDuration.Field(elapsed),
					FieldError.Field(err),
				)
			} else {
				capitan.Emit(ctx, MemberResponded,
					FieldTraceID.Field(traceID),
					FieldStage.Field(stage.String()),
					FieldMember.Field(member),
					FieldCallDuration.Field(elapsed),
				)
			}

			results <- memberResult{member: member, reply: reply, elapsed: elapsed, err: err}
		}(member, prompt)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	responses := make(map[string]Response, len(prompts))
	var failures []CallFailure
	for r := range results {
		if r.err != nil {
			failures = append(failures, CallFailure{Member: r.member, Stage: stage, Err: r.err})
			continue
		}
		responses[r.member] = Response{Member: r.member, Text: r.reply, Elapsed: r.elapsed}
	}
	return responses, failures
}

// review runs stage 2: each responder gets an anonymized view of its
// peers and ranks them. Only stage 1 responders review; a member that
// never answered gets no review call.
func (c *Council) review(ctx context.Context, traceID, question string, responses map[string]Response) (map[string]Ranking, []CallFailure) {
	views := make(map[string]*AnonymizedView, len(responses))
	prompts := make(map[string]string, len(responses))
	var failures []CallFailure

	for member := range responses {
		view, err := Anonymize(responses, member)
		if err != nil {
			failures = append(failures, CallFailure{Member: member, Stage: StageReview, Err: err})
			continue
		}
		views[member] = view
		prompts[member] = BuildReviewPrompt(question, view)
	}

	replies, callFailures := c.fanOut(ctx, traceID, StageReview, prompts)
	failures = append(failures, callFailures...)

	rankings := make(map[string]Ranking, len(replies))
	for member, reply := range replies {
		ranking, err := ParseReview(reply.Text, views[member])
		if err != nil {
			failures = append(failures, CallFailure{Member: member, Stage: StageReview, Err: err})
			capitan.Emit(ctx, ReviewDiscarded,
				FieldTraceID.Field(traceID),
				FieldMember.Field(member),
				FieldError.Field(err),
			)
			continue
		}
		rankings[member] = ranking
		capitan.Emit(ctx, ReviewParsed,
			FieldTraceID.Field(traceID),
			FieldMember.Field(member),
			FieldRankingSize.Field(len(ranking.Entries)),
		)
	}
	return rankings, failures
}

// synthesize runs stage 3: one call to the aggregator with the full
// deliberation rendered into a deterministic prompt.
func (c *Council) synthesize(ctx context.Context, traceID, question string, responses map[string]Response, rankings map[string]Ranking) (string, error) {
	capitan.Emit(ctx, SynthesisStarted,
		FieldTraceID.Field(traceID),
		FieldMember.Field(c.roster.Aggregator.ID),
		FieldResponseCount.Field(len(responses)),
		FieldRankingCount.Field(len(rankings)),
	)

	callStart := time.Now()
	prompt := BuildSynthesisPrompt(question, responses, rankings)
	answer, err := c.call(WithTemperature(ctx, c.synthesisTemperature), c.roster.Aggregator.ID, prompt)
	if err != nil {
		return "", err
	}

	capitan.Emit(ctx, SynthesisCompleted,
		FieldTraceID.Field(traceID),
		FieldMember.Field(c.roster.Aggregator.ID),
		FieldCallDuration.Field(time.Since(callStart)),
		FieldAnswerSize.Field(len(answer)),
	)
	return answer, nil
}

// insufficient builds the fatal stage 1 error, naming every member that
// failed so the caller sees who went missing and why.
func (c *Council) insufficient(responses map[string]Response, failures []CallFailure) error {
	if len(failures) == 0 {
		return fmt.Errorf("%w: %d of %d members answered",
			ErrInsufficientResponses, len(responses), c.roster.Size())
	}
	sortFailures(failures)
	causes := make([]error, 0, len(failures))
	for _, f := range failures {
		causes = append(causes, f.Err)
	}
	return fmt.Errorf("%w: %d of %d members answered: %w",
		ErrInsufficientResponses, len(responses), c.roster.Size(), errors.Join(causes...))
}

// save archives the full result when an archive is attached. Archival is
// best effort: the deliberation outcome never depends on storage health.
func (c *Council) save(ctx context.Context, result *CouncilResult) {
	if c.archive == nil {
		return
	}
	if err := c.archive.SaveRun(ctx, result); err != nil {
		capitan.Error(ctx, ArchiveFailed,
			FieldTraceID.Field(result.TraceID),
			FieldError.Field(err),
		)
		return
	}
	capitan.Emit(ctx, ArchiveSaved,
		FieldTraceID.Field(result.TraceID),
	)
}

// emitRunFailed emits the run failed event.
func (c *Council) emitRunFailed(ctx context.Context, traceID string, stage Stage, start time.Time, err error) {
	capitan.Error(ctx, RunFailed,
		FieldTraceID.Field(traceID),
		FieldStage.Field(stage.String()),
		FieldRunDuration.Field(time.Since(start)),
		FieldError.Field(err),
	)
}

// Builder methods

// WithTimeout sets the per-call timeout. Values at or below zero fall
// back to DefaultTimeout.
func (c *Council) WithTimeout(d time.Duration) *Council {
	if d <= 0 {
		d = DefaultTimeout
	}
	c.timeout = d
	return c
}

// WithTemperature sets the temperature for stage 1 and stage 2 calls.
func (c *Council) WithTemperature(temperature float32) *Council {
	c.temperature = temperature
	return c
}

// WithSynthesisTemperature sets the temperature for the aggregator's
// stage 3 call.
func (c *Council) WithSynthesisTemperature(temperature float32) *Council {
	c.synthesisTemperature = temperature
	return c
}

// WithVerbose controls whether results carry the intermediate responses,
// rankings, and aggregate standings. Off trims them to the final answer;
// failure disclosures always survive. On by default.
func (c *Council) WithVerbose(verbose bool) *Council {
	c.verbose = verbose
	return c
}

// WithRateLimit caps the council's combined call rate across all members
// and stages. Useful when every member resolves to the same upstream
// account.
func (c *Council) WithRateLimit(perSecond float64, burst int) *Council {
	c.limiter = pipz.NewRateLimiter[*exchange](pipz.Name("council-rate"), perSecond, burst)
	return c
}

// WithArchive attaches a transcript store. Completed runs are saved best
// effort; deliberation never reads the archive.
func (c *Council) WithArchive(a Archive) *Council {
	c.archive = a
	return c
}

// Roster returns a copy of the council's roster.
func (c *Council) Roster() Roster {
	participants := make([]Member, len(c.roster.Participants))
	copy(participants, c.roster.Participants)
	return Roster{Participants: participants, Aggregator: c.roster.Aggregator}
}
