package domain

// SweepCommand asks the background sweeper to strip a deleted label title
// from every task of one user. It is fire-and-forget: a lost or failed sweep
// leaves tasks referencing a title that no longer exists in the registry.
type SweepCommand struct {
	UserID     string `json:"userId"`
	Label      string `json:"label"`
	EnqueuedAt int64  `json:"enqueuedAt"`
}
