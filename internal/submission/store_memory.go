package submission

import (
	"context"
	"sort"
	"sync"
	"time"

	id "refiler/pkg/domain"
	"refiler/pkg/platform/sentinel"
)

// InMemoryStore keeps submissions in process, guarded by one mutex so Create
// and Apply observe the same atomicity as the postgres row lock.
type InMemoryStore struct {
	mu    sync.Mutex
	subs  map[id.SubmissionID]*FilingSubmission
	order []id.SubmissionID
	clock func() time.Time
}

// InMemoryOption configures the store.
type InMemoryOption func(*InMemoryStore)

// WithClock injects a clock for testability.
func WithClock(clock func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		subs:  make(map[id.SubmissionID]*FilingSubmission),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Create(_ context.Context, sub *FilingSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subs {
		if existing.ReportID == sub.ReportID && existing.Status.Active() {
			return sentinel.ErrConflict
		}
	}

	now := s.clock()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	clone := *sub
	s.subs[sub.ID] = &clone
	s.order = append(s.order, sub.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, subID id.SubmissionID) (*FilingSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *sub
	return &clone, nil
}

func (s *InMemoryStore) LatestByReport(_ context.Context, reportID id.ReportID) (*FilingSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		sub := s.subs[s.order[i]]
		if sub.ReportID == reportID {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) DuePolls(_ context.Context, now time.Time, limit int) ([]*FilingSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*FilingSubmission
	for _, subID := range s.order {
		sub := s.subs[subID]
		awaiting := sub.Status == StatusSubmitted ||
			(sub.Status == StatusAccepted && sub.ReceiptID == "")
		if awaiting && sub.NextPollAt != nil && !sub.NextPollAt.After(now) {
			clone := *sub
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextPollAt.Before(*due[j].NextPollAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// WithTx has no transaction to offer in a single-process store; fn runs
// directly and its writes take effect immediately.
func (s *InMemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *InMemoryStore) Apply(_ context.Context, subID id.SubmissionID, expect Status, mutate func(*FilingSubmission) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[subID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sub.Status != expect {
		return sentinel.ErrInvalidState
	}

	clone := *sub
	if err := mutate(&clone); err != nil {
		return err
	}
	if clone.Status != sub.Status && !CanTransition(sub.Status, clone.Status) {
		return sentinel.ErrInvalidState
	}
	clone.UpdatedAt = s.clock()
	s.subs[subID] = &clone
	return nil
}
