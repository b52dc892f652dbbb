package council

import (
	"fmt"
	"strings"
)

// Roster is the fixed cast of a council: the participants that answer and
// review, plus the aggregator that synthesizes. A Roster is immutable once
// built; construct with NewRoster so the invariants hold.
type Roster struct {
	Participants []Member
	Aggregator   Member
}

// NewRoster builds a validated roster from participant IDs and the
// aggregator ID. The aggregator may also appear among the participants;
// its Member then carries both roles.
//
// Validation rejects empty IDs, duplicate participants, a missing
// aggregator, and rosters too large for the anonymous label alphabet
// (each reviewer must be able to label every peer response).
func NewRoster(participants []string, aggregator string) (Roster, error) {
	var r Roster

	if len(participants) == 0 {
		return r, ErrEmptyRoster
	}
	aggregator = strings.TrimSpace(aggregator)
	if aggregator == "" {
		return r, ErrNoAggregator
	}
	if len(participants)-1 > len(labelAlphabet) {
		return r, fmt.Errorf("%w: %d participants, %d labels", ErrTooManyResponses, len(participants), len(labelAlphabet))
	}

	seen := make(map[string]struct{}, len(participants))
	members := make([]Member, 0, len(participants))
	for _, id := range participants {
		id = strings.TrimSpace(id)
		if id == "" {
			return r, fmt.Errorf("%w: blank participant ID", ErrEmptyRoster)
		}
		if _, dup := seen[id]; dup {
			return r, fmt.Errorf("%w: %s", ErrDuplicateMember, id)
		}
		seen[id] = struct{}{}

		role := RoleParticipant
		if id == aggregator {
			role |= RoleAggregator
		}
		members = append(members, Member{ID: id, Role: role})
	}

	r.Participants = members
	r.Aggregator = Member{ID: aggregator, Role: RoleAggregator}
	if _, ok := seen[aggregator]; ok {
		r.Aggregator.Role |= RoleParticipant
	}
	return r, nil
}

// validate re-checks the roster invariants. New relies on this so a
// hand-built Roster cannot smuggle an invalid cast into a council.
func (r Roster) validate() error {
	if len(r.Participants) == 0 {
		return ErrEmptyRoster
	}
	if strings.TrimSpace(r.Aggregator.ID) == "" {
		return ErrNoAggregator
	}
	if len(r.Participants)-1 > len(labelAlphabet) {
		return fmt.Errorf("%w: %d participants, %d labels", ErrTooManyResponses, len(r.Participants), len(labelAlphabet))
	}
	seen := make(map[string]struct{}, len(r.Participants))
	for _, m := range r.Participants {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("%w: blank participant ID", ErrEmptyRoster)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

// ParticipantIDs returns the participant IDs in roster order.
func (r Roster) ParticipantIDs() []string {
	ids := make([]string, len(r.Participants))
	for i, m := range r.Participants {
		ids[i] = m.ID
	}
	return ids
}

// Size returns the number of participants.
func (r Roster) Size() int {
	return len(r.Participants)
}
