// Package council orchestrates multi-model LLM deliberation for Go.
//
// council sends one question to several LLM "members" in parallel, has each
// member anonymously rank the others' answers, and then has a designated
// aggregator synthesize everything into a single final answer.
//
// # Core Types
//
// The package is built around four core concepts:
//
//   - [Council] - An immutable deliberation engine bound to a roster and gateway
//   - [Roster] - The participating members plus the aggregator
//   - [Gateway] - Transport to the LLM backends (one Invoke per member call)
//   - [CouncilResult] - The terminal artifact of a run: answer, responses,
//     rankings, aggregate standings, and failure disclosures
//
// # Running a Deliberation
//
// Use [NewRoster] and [New] to construct a council, then [Council.Run]:
//
//	roster, _ := council.NewRoster(
//	    []string{"openai/gpt-5.1", "google/gemini-3-pro", "anthropic/claude-sonnet-4.5"},
//	    "google/gemini-3-pro",
//	)
//	c, _ := council.New(gateway, roster)
//	result, err := c.Run(ctx, "What are the tradeoffs of event sourcing?")
//	fmt.Println(result.Answer)
//
// Each run executes three sequential stages:
//
//  1. Collection - the question fans out to every participant concurrently
//  2. Review - each responder ranks the others' answers under anonymous labels
//  3. Synthesis - the aggregator merges responses and rankings into one answer
//
// Stages 1 and 2 tolerate partial failure; at least two responses must
// survive stage 1 ([ErrInsufficientResponses] otherwise), and a stage 3
// failure aborts the run ([ErrSynthesisFailed]). Members that dropped out
// are always disclosed in [CouncilResult.Failures].
//
// # Gateways
//
// [ProviderGateway] routes each member to a zyn-compatible [Provider]:
//
//	gw := council.NewProviderGateway()
//	gw.Register("openai/gpt-5.1", council.NewOpenRouterProvider(apiKey, "openai/gpt-5.1"))
//
// [NewOpenRouterCouncil] wires an entire roster against the OpenRouter API
// in one call. Any implementation of [Gateway] works; see the counciltest
// package for a scripted mock.
//
// # Anonymity
//
// Reviews are blind. [Anonymize] relabels the other members' responses as
// Response A, B, C... (assignment is deterministic: label order follows
// sorted member IDs, the reviewer's own response excluded), and
// [ParseReview] translates ranked labels back to member IDs, tolerating
// prose, unknown labels, and duplicates in the model's reply.
//
// # Persistence
//
// Runs are stateless; nothing is read back between or during runs. To keep
// transcripts, attach an [Archive] with [Council.WithArchive]. [SoyArchive]
// persists runs to PostgreSQL via soy:
//
//	archive, _ := council.NewSoyArchive(db)
//	c = c.WithArchive(archive)
//
// # Observability
//
// council emits capitan signals throughout a run. See signals.go for the
// complete list including RunStarted, MemberResponded, ReviewParsed,
// SynthesisCompleted, and RunFailed.
package council
