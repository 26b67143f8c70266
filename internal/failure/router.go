package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

// Router errors.
var (
	ErrFailureNotFound   = errors.New("failure not found")
	ErrJobNotFound       = errors.New("resume job not found")
	ErrInvalidTransition = errors.New("invalid resume job status transition")
	ErrNilSnapshot       = errors.New("resume job requires a record snapshot")
)

// DefaultAttemptCeiling is the number of occurrences after which a temporary
// failure is promoted to permanent and automatic retry stops.
const DefaultAttemptCeiling = 2

// Context carries where a failure happened.
type Context struct {
	Stage    agents.Stage
	RecordID string
}

// Record is one tracked failure. Repeated identical failures increment
// Attempts rather than creating new records.
type Record struct {
	ID        string           `json:"id"`
	Agent     agents.AgentType `json:"agent"`
	Stage     agents.Stage     `json:"stage"`
	RecordID  string           `json:"record_id"`
	Message   string           `json:"message"`
	Class     Class            `json:"class"`
	Rule      string           `json:"rule"`
	Attempts  int              `json:"attempts"`
	FirstSeen time.Time        `json:"first_seen"`
	LastSeen  time.Time        `json:"last_seen"`
	Bay       string           `json:"bay"`
}

// Permanent reports whether only manual repair can recover this failure.
func (r *Record) Permanent() bool {
	return r.Class == ClassPermanent
}

// Stats aggregates the router's bookkeeping.
type Stats struct {
	Total         int            `json:"total"`
	Temporary     int            `json:"temporary"`
	Permanent     int            `json:"permanent"`
	PendingRepair int            `json:"pending_repair"`
	ByBay         map[string]int `json:"by_bay"`
	ByAgent       map[string]int `json:"by_agent"`
}

// Router classifies errors and files failure records into repair bays keyed
// by stage and agent type.
type Router struct {
	mu             sync.Mutex
	classifier     *Classifier
	attemptCeiling int
	failures       map[string]*Record // keyed by stage|agent|record|message
	byID           map[string]*Record
	jobs           map[string]*ResumeJob
	now            func() time.Time
	logger         *zap.Logger
}

// NewRouter creates a failure router. A zero attemptCeiling uses
// DefaultAttemptCeiling; a nil classifier uses the default rules. If logger
// is nil, uses a no-op logger.
func NewRouter(classifier *Classifier, attemptCeiling int, logger *zap.Logger) *Router {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if attemptCeiling <= 0 {
		attemptCeiling = DefaultAttemptCeiling
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		classifier:     classifier,
		attemptCeiling: attemptCeiling,
		failures:       make(map[string]*Record),
		byID:           make(map[string]*Record),
		jobs:           make(map[string]*ResumeJob),
		now:            time.Now,
		logger:         logger.Named("failure"),
	}
}

// SetClock overrides the time source. Intended for tests.
func (r *Router) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// BayFor names the repair bay for a stage/agent pair.
func BayFor(stage agents.Stage, agent agents.AgentType) string {
	return string(stage) + "/" + string(agent)
}

// RouteError classifies err, creates or increments the matching failure
// record, and files it into its repair bay. A temporary failure that has
// occurred more times than the attempt ceiling is promoted to permanent.
// Returns the up-to-date record.
func (r *Router) RouteError(err error, agent agents.AgentType, fctx Context) *Record {
	message := err.Error()
	class, rule := r.classifier.Classify(message)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := string(fctx.Stage) + "|" + string(agent) + "|" + fctx.RecordID + "|" + message

	rec, ok := r.failures[key]
	if !ok {
		rec = &Record{
			ID:        "fail_" + uuid.New().String(),
			Agent:     agent,
			Stage:     fctx.Stage,
			RecordID:  fctx.RecordID,
			Message:   message,
			Class:     class,
			Rule:      rule,
			Attempts:  1,
			FirstSeen: now,
			LastSeen:  now,
			Bay:       BayFor(fctx.Stage, agent),
		}
		r.failures[key] = rec
		r.byID[rec.ID] = rec
	} else {
		rec.Attempts++
		rec.LastSeen = now
	}

	if rec.Class == ClassTemporary && rec.Attempts > r.attemptCeiling {
		rec.Class = ClassPermanent
		r.logger.Warn("temporary failure promoted to permanent",
			zap.String("failure_id", rec.ID),
			zap.String("agent", string(agent)),
			zap.Int("attempts", rec.Attempts),
		)
	}

	r.logger.Error("failure routed",
		zap.String("failure_id", rec.ID),
		zap.String("bay", rec.Bay),
		zap.String("class", string(rec.Class)),
		zap.String("rule", rec.Rule),
		zap.Int("attempts", rec.Attempts),
		zap.Error(err),
	)
	return rec.clone()
}

// Get returns a failure record by id.
func (r *Router) Get(failureID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[failureID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFailureNotFound, failureID)
	}
	return rec.clone(), nil
}

// Statistics returns aggregate counts by bay, by agent, and pending repairs.
func (r *Router) Statistics() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		ByBay:   make(map[string]int),
		ByAgent: make(map[string]int),
	}
	for _, rec := range r.byID {
		stats.Total++
		stats.ByBay[rec.Bay]++
		stats.ByAgent[string(rec.Agent)]++
		if rec.Class == ClassPermanent {
			stats.Permanent++
			stats.PendingRepair++
		} else {
			stats.Temporary++
		}
	}
	return stats
}

// Report renders a human-readable summary of all failures grouped by bay.
// Always available, even after a partially failed batch.
func (r *Router) Report() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byID) == 0 {
		return "no failures recorded\n"
	}

	byBay := make(map[string][]*Record)
	for _, rec := range r.byID {
		byBay[rec.Bay] = append(byBay[rec.Bay], rec)
	}
	bays := make([]string, 0, len(byBay))
	for bay := range byBay {
		bays = append(bays, bay)
	}
	sort.Strings(bays)

	var b strings.Builder
	fmt.Fprintf(&b, "failure report: %d failure(s) across %d bay(s)\n", len(r.byID), len(bays))
	for _, bay := range bays {
		recs := byBay[bay]
		sort.Slice(recs, func(i, j int) bool { return recs[i].FirstSeen.Before(recs[j].FirstSeen) })
		fmt.Fprintf(&b, "\nbay %s (%d):\n", bay, len(recs))
		for _, rec := range recs {
			fmt.Fprintf(&b, "  [%s] %s attempts=%d record=%s\n    %s\n",
				rec.Class, rec.ID, rec.Attempts, rec.RecordID, rec.Message)
		}
	}

	pending := 0
	for _, job := range r.jobs {
		if job.Status == JobPending {
			pending++
		}
	}
	fmt.Fprintf(&b, "\nresume jobs pending: %d\n", pending)
	return b.String()
}

func (rec *Record) clone() *Record {
	cp := *rec
	return &cp
}
