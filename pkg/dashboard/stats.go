package dashboard

import (
	"sort"
	"time"

	"github.com/crewforge/crewforge/pkg/ledger"
)

// AgentActivity summarizes one agent's footprint in the ledger.
type AgentActivity struct {
	Agent        string
	MessagesSent int
	Status       string
	LastActivity time.Time
}

// Stats are session totals derived from a ledger snapshot.
type Stats struct {
	TotalMessages   int
	MessagesByType  map[string]int
	LocksHeld       int
	LocksRequested  int
	LocksApproved   int
	LocksDenied     int
	LocksExpired    int
	ConflictsOpen   int
	ConflictsClosed int
	Integrations    int
	ActiveAgents    int
	AgentActivity   []AgentActivity
	MessagesPerMin  float64
	SessionDuration time.Duration
}

// ComputeStats derives session statistics from a snapshot. sessionStart
// anchors rate and duration; pass the dashboard launch time.
func ComputeStats(doc *ledger.Document, sessionStart time.Time) Stats {
	stats := Stats{MessagesByType: map[string]int{}}
	if doc == nil {
		return stats
	}

	activity := map[string]*AgentActivity{}
	touch := func(agent string, when time.Time) *AgentActivity {
		a, ok := activity[agent]
		if !ok {
			a = &AgentActivity{Agent: agent}
			activity[agent] = a
		}
		if when.After(a.LastActivity) {
			a.LastActivity = when
		}
		return a
	}

	stats.TotalMessages = len(doc.Messages)
	for _, msg := range doc.Messages {
		kind := msg.Type
		if kind == "" {
			kind = ledger.MessageInfo
		}
		stats.MessagesByType[kind]++
		touch(msg.From, msg.Timestamp).MessagesSent++
	}

	// Status updates are append-ordered, so the last one wins.
	for _, update := range doc.StatusUpdates {
		touch(update.Agent, update.Timestamp).Status = update.State
	}

	stats.LocksHeld = len(doc.FileLocks)
	for _, req := range doc.LockRequests {
		stats.LocksRequested++
		switch req.Status {
		case ledger.RequestApproved:
			stats.LocksApproved++
		case ledger.RequestDenied:
			stats.LocksDenied++
		case ledger.RequestExpired:
			stats.LocksExpired++
		}
	}

	for _, conflict := range doc.Conflicts {
		if conflict.Status == ledger.ConflictOpen {
			stats.ConflictsOpen++
		} else {
			stats.ConflictsClosed++
		}
	}
	stats.Integrations = len(doc.IntegrationPoints)

	stats.ActiveAgents = len(activity)
	for _, a := range activity {
		stats.AgentActivity = append(stats.AgentActivity, *a)
	}
	sort.Slice(stats.AgentActivity, func(i, j int) bool {
		return stats.AgentActivity[i].Agent < stats.AgentActivity[j].Agent
	})

	if !sessionStart.IsZero() {
		stats.SessionDuration = time.Since(sessionStart)
		minutes := stats.SessionDuration.Minutes()
		if minutes < 1 {
			minutes = 1
		}
		stats.MessagesPerMin = float64(stats.TotalMessages) / minutes
	}
	return stats
}
