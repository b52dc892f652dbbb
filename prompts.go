package council

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt assembly for the three stages. All builders are pure functions
// of their inputs: identical inputs produce byte-identical prompts, so a
// run is reproducible from its transcript. Map iteration is always
// replaced by sorted iteration here.

// BuildQueryPrompt renders the stage 1 prompt. Members answer the
// question cold, with no framing that could skew their natural style.
func BuildQueryPrompt(question string) string {
	return question
}

// BuildReviewPrompt renders the stage 2 prompt for one reviewer's view:
// the question, each peer response under its anonymous label, and the
// required output format. The closing instruction names the view's own
// labels so the model has a concrete example to echo.
func BuildReviewPrompt(question string, view *AnonymizedView) string {
	var b strings.Builder

	b.WriteString("You are reviewing answers from an anonymous panel. Your own answer is not shown.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	for _, label := range view.Labels {
		fmt.Fprintf(&b, "Response %s:\n%s\n\n", label, view.LabelToText[label])
	}

	example := "A"
	if len(view.Labels) > 0 {
		example = view.Labels[0]
	}
	b.WriteString("Evaluate each response for accuracy, depth, and clarity. ")
	b.WriteString("Then give your ranking from best to worst on a final line in exactly this format:\n\n")
	fmt.Fprintf(&b, "%s [%s]\n\n", rankingMarker, strings.Join(view.Labels, ", "))
	b.WriteString("After the ranking you may add one line per label explaining its position, ")
	fmt.Fprintf(&b, "for example \"%s: concise but misses the main tradeoff\".\n", example)

	return b.String()
}

// BuildSynthesisPrompt renders the stage 3 prompt: the question, every
// surviving response under its real member ID, and every ranking
// de-anonymized. Responses sort by member ID and rankings by reviewer ID,
// which keeps the prompt byte-identical across runs with the same inputs.
func BuildSynthesisPrompt(question string, responses map[string]Response, rankings map[string]Ranking) string {
	var b strings.Builder

	b.WriteString("You are the aggregator of a model council. The members below answered the question independently, ")
	b.WriteString("then ranked each other's answers without knowing who wrote what.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\n")

	b.WriteString("Member answers:\n\n")
	members := make([]string, 0, len(responses))
	for id := range responses {
		members = append(members, id)
	}
	sort.Strings(members)
	for _, id := range members {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", id, responses[id].Text)
	}

	if len(rankings) == 0 {
		b.WriteString("No peer rankings were produced this round.\n\n")
	} else {
		b.WriteString("Peer rankings (best to worst):\n\n")
		reviewers := make([]string, 0, len(rankings))
		for id := range rankings {
			reviewers = append(reviewers, id)
		}
		sort.Strings(reviewers)
		for _, reviewer := range reviewers {
			ranking := rankings[reviewer]
			fmt.Fprintf(&b, "%s: %s\n", reviewer, strings.Join(ranking.Order(), " > "))
			for _, entry := range ranking.Entries {
				if entry.Reason == "" {
					continue
				}
				fmt.Fprintf(&b, "  %s: %s\n", entry.Member, entry.Reason)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Synthesize the council's work into one final answer. Weigh the rankings, ")
	b.WriteString("favor points of agreement, and resolve disagreements explicitly. ")
	b.WriteString("Answer the question directly; do not describe the process.\n")

	return b.String()
}
