package council

// Role marks what a member does during a run. A member may hold both
// roles: the aggregator is usually also a participant.
type Role uint8

const (
	// RoleParticipant answers the question in stage 1 and reviews peers
	// in stage 2.
	RoleParticipant Role = 1 << iota

	// RoleAggregator synthesizes the final answer in stage 3.
	RoleAggregator
)

// Member is a single LLM backend on the council. The ID is opaque to the
// engine; with the OpenRouter gateway it doubles as the model slug.
type Member struct {
	ID   string
	Role Role
}

// IsParticipant reports whether the member answers and reviews.
func (m Member) IsParticipant() bool {
	return m.Role&RoleParticipant != 0
}

// IsAggregator reports whether the member synthesizes the final answer.
func (m Member) IsAggregator() bool {
	return m.Role&RoleAggregator != 0
}
