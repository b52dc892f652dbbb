package council

import (
	"fmt"
	"strings"
	"unicode"
)

// rankingMarker is the token review prompts instruct models to emit
// before their ordered labels. The parser keys on its last occurrence, so
// prose that merely mentions the word earlier does no harm.
const rankingMarker = "RANKING:"

// ParseReview extracts a Ranking from a free-text review reply.
//
// The parser is deliberately tolerant. It accepts the instructed form
//
//	RANKING: [B, A]
//
// as well as bare sequences ("RANKING: B > A"), the bracket on the next
// line, and numbered lists under the marker. Labels not present in the
// view are dropped, duplicates keep their first position, and lines of
// the form "B: too terse" attach per-entry reasoning wherever they appear
// in the reply.
//
// Only a reply with no marker or no surviving labels fails, with an error
// wrapping ErrUnparsableReview. The orchestrator discards such reviews
// and deliberation continues without them.
func ParseReview(text string, view *AnonymizedView) (Ranking, error) {
	idx := strings.LastIndex(text, rankingMarker)
	if idx < 0 {
		return Ranking{}, fmt.Errorf("%w: marker %q absent", ErrUnparsableReview, rankingMarker)
	}
	tail := text[idx+len(rankingMarker):]
	lines := strings.Split(tail, "\n")

	// Ordered labels usually sit on the marker line itself.
	labels := labelSequence(lines[0], view)

	// Entry lines under the marker ("1. B - verbose") carry the order
	// when the marker line has none.
	var listed []string
	for _, line := range lines[1:] {
		label, _, ok := entryLine(line, view)
		if !ok {
			continue
		}
		listed = append(listed, label)
	}

	// Some models put the bracket or bare sequence on the following
	// line instead. A line that already reads as a list entry belongs
	// to the entry order, not here.
	if len(labels) == 0 {
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, _, ok := entryLine(line, view); !ok {
				labels = labelSequence(line, view)
			}
			break
		}
	}
	if len(labels) == 0 {
		labels = dedupLabels(listed)
	}
	if len(labels) == 0 {
		return Ranking{}, fmt.Errorf("%w: no usable labels after marker", ErrUnparsableReview)
	}

	// Reasoning may appear anywhere in the reply, before or after the
	// marker. First mention wins.
	reasons := make(map[string]string, len(labels))
	for _, line := range strings.Split(text, "\n") {
		label, reason, ok := entryLine(line, view)
		if !ok || reason == "" {
			continue
		}
		if _, have := reasons[label]; !have {
			reasons[label] = reason
		}
	}

	entries := make([]RankedEntry, 0, len(labels))
	for _, label := range labels {
		member, _ := view.Member(label)
		entries = append(entries, RankedEntry{Member: member, Reason: reasons[label]})
	}
	return Ranking{Reviewer: view.Reviewer, Entries: entries}, nil
}

// labelSequence reads an ordered run of labels from a single line.
// "Response" is skipped as filler; an unknown single capital is dropped
// and the run continues; any other word ends the run. Duplicates keep
// their first position.
func labelSequence(line string, view *AnonymizedView) []string {
	tokens := strings.FieldsFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	var labels []string
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		if strings.EqualFold(tok, "Response") {
			continue
		}
		if len(tok) != 1 || tok[0] < 'A' || tok[0] > 'Z' {
			break
		}
		if _, known := view.LabelToMember[tok]; !known {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		labels = append(labels, tok)
	}
	return labels
}

// entryLine parses one "B: reason" style line, tolerating list bullets,
// ordinals, a "Response" prefix, and a lowercase label. A line whose
// first word merely starts with a label letter is rejected by the
// separator check.
func entryLine(line string, view *AnonymizedView) (label, reason string, ok bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "-*0123456789.) \t")
	if strings.HasPrefix(s, "Response ") || strings.HasPrefix(s, "response ") {
		s = s[len("Response "):]
	}
	if s == "" {
		return "", "", false
	}

	label = strings.ToUpper(string(s[0]))
	if _, known := view.LabelToMember[label]; !known {
		return "", "", false
	}

	rest := strings.TrimSpace(s[1:])
	switch {
	case rest == "":
		return label, "", true
	case rest[0] == ':' || rest[0] == '-':
		return label, strings.TrimSpace(strings.TrimLeft(rest, ":- ")), true
	default:
		return "", "", false
	}
}

// dedupLabels keeps the first occurrence of each label.
func dedupLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
