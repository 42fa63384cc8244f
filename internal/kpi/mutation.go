package kpi

import "github.com/google/uuid"

// MutationKind names a KPI-affecting mutation.
type MutationKind string

const (
	MutationMatchCreated    MutationKind = "match_created"
	MutationMessageSent     MutationKind = "message_sent"
	MutationBusinessChanged MutationKind = "business_changed"
	MutationViewRecorded    MutationKind = "view_recorded"
)

// Mutation is the single event type every KPI-affecting mutation site raises.
// Centralizing invalidation behind one event keeps new call sites from
// forgetting to invalidate.
type Mutation struct {
	UserID uuid.UUID
	Kind   MutationKind
}

// Listener is notified after a mutation-triggered invalidation. The realtime
// gateway implements this to push kpi-invalidated to connected dashboards.
type Listener interface {
	KPIInvalidated(userID uuid.UUID)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(userID uuid.UUID)

func (f ListenerFunc) KPIInvalidated(userID uuid.UUID) { f(userID) }
