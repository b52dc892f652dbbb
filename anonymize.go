package council

import (
	"fmt"
	"sort"
)

// AnonymizedView is what one reviewer sees in stage 2: the other members'
// responses relabeled as Response A, B, C... with the mapping back to
// real member IDs kept on the side. The reviewer's own response is never
// in the view.
type AnonymizedView struct {
	Reviewer      string
	Labels        []string
	LabelToMember map[string]string
	LabelToText   map[string]string
}

// Anonymize builds the blind view for one reviewer. Label assignment is
// deterministic: member IDs are sorted, the reviewer excluded, and labels
// handed out in alphabet order. Two runs over the same response set give
// byte-identical views.
//
// Returns ErrTooManyResponses if the peer set exceeds the label alphabet.
// Rosters are validated against the alphabet at construction, so this is
// a defense for callers using Anonymize directly.
func Anonymize(responses map[string]Response, exclude string) (*AnonymizedView, error) {
	members := make([]string, 0, len(responses))
	for id := range responses {
		if id == exclude {
			continue
		}
		members = append(members, id)
	}
	sort.Strings(members)

	if len(members) > len(labelAlphabet) {
		return nil, fmt.Errorf("%w: %d responses, %d labels", ErrTooManyResponses, len(members), len(labelAlphabet))
	}

	view := &AnonymizedView{
		Reviewer:      exclude,
		Labels:        make([]string, 0, len(members)),
		LabelToMember: make(map[string]string, len(members)),
		LabelToText:   make(map[string]string, len(members)),
	}
	for i, id := range members {
		label := string(labelAlphabet[i])
		view.Labels = append(view.Labels, label)
		view.LabelToMember[label] = id
		view.LabelToText[label] = responses[id].Text
	}
	return view, nil
}

// Member resolves a label back to its member ID.
func (v *AnonymizedView) Member(label string) (string, bool) {
	id, ok := v.LabelToMember[label]
	return id, ok
}

// Size returns how many peer responses the view holds.
func (v *AnonymizedView) Size() int {
	return len(v.Labels)
}
