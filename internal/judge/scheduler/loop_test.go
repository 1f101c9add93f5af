package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"cryptoj/internal/judge/event"
	"cryptoj/internal/judge/model"
)

type fakeStore struct {
	mu          sync.Mutex
	pending     []*model.Submission
	experiments map[int64]*model.Experiment
	usernames   map[int64]string
	accepted    map[int64]map[int64]bool // expid -> uid
	results     map[int64]*model.JudgeResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		experiments: map[int64]*model.Experiment{1: {ExpID: 1, Title: "RSA Lab"}},
		usernames:   map[int64]string{42: "alice"},
		accepted:    map[int64]map[int64]bool{},
		results:     map[int64]*model.JudgeResult{},
	}
}

func (s *fakeStore) push(sub *model.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, sub)
}

func (s *fakeStore) OldestPending(ctx context.Context) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, nil
	}
	return s.pending[0], nil
}

func (s *fakeStore) Experiment(ctx context.Context, expID int64) (*model.Experiment, error) {
	return s.experiments[expID], nil
}

func (s *fakeStore) UpdateResult(ctx context.Context, subID int64, result *model.JudgeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[subID] = result
	for i, sub := range s.pending {
		if sub.SubID == subID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) ExperimentTitle(ctx context.Context, expID int64) (string, error) {
	return s.experiments[expID].Title, nil
}

func (s *fakeStore) HasPriorAccepted(ctx context.Context, expID, uid, excludeSubID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted[expID][uid], nil
}

func (s *fakeStore) Username(ctx context.Context, uid int64) (string, error) {
	return s.usernames[uid], nil
}

type fakeJudger struct {
	result func(sub *model.Submission) *model.JudgeResult
}

func (j *fakeJudger) Judge(ctx context.Context, sub *model.Submission, exp *model.Experiment) *model.JudgeResult {
	return j.result(sub)
}

func acceptedResult() *model.JudgeResult {
	return &model.JudgeResult{
		CompileSuccess: true,
		Completed:      true,
		Time:           12,
		Memory:         1024,
		AcceptedCount:  3,
		Accepted:       true,
	}
}

func waitEvent(t *testing.T, sub *event.Subscription) any {
	t.Helper()
	select {
	case payload := <-sub.C:
		return payload
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestLoopJudgesOnWake(t *testing.T) {
	store := newFakeStore()
	bus := event.NewBus()
	defer bus.Close()
	judgeSub := bus.Subscribe(event.TopicJudge, 4)
	congratsSub := bus.Subscribe(event.TopicCongrats, 4)

	loop := NewLoop(store, &fakeJudger{result: func(*model.Submission) *model.JudgeResult {
		return acceptedResult()
	}}, bus, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	store.push(&model.Submission{SubID: 7, UID: 42, ExpID: 1, Pending: true})
	loop.Wake()

	judged := waitEvent(t, judgeSub).(model.JudgeEvent)
	if judged.SubID != 7 || judged.Title != "RSA Lab" || !judged.Accepted {
		t.Errorf("unexpected judge event: %+v", judged)
	}
	congrats := waitEvent(t, congratsSub).(model.CongratsEvent)
	if congrats.Username != "alice" || congrats.SubID != 7 {
		t.Errorf("unexpected congrats event: %+v", congrats)
	}

	store.mu.Lock()
	if len(store.pending) != 0 || store.results[7] == nil {
		t.Errorf("submission not resolved: pending=%d", len(store.pending))
	}
	store.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on cancellation")
	}
}

func TestLoopSkipsCongratsOnPriorAccepted(t *testing.T) {
	store := newFakeStore()
	store.accepted[1] = map[int64]bool{42: true}
	bus := event.NewBus()
	defer bus.Close()
	judgeSub := bus.Subscribe(event.TopicJudge, 4)
	congratsSub := bus.Subscribe(event.TopicCongrats, 4)

	loop := NewLoop(store, &fakeJudger{result: func(*model.Submission) *model.JudgeResult {
		return acceptedResult()
	}}, bus, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	store.push(&model.Submission{SubID: 8, UID: 42, ExpID: 1, Pending: true})
	loop.Wake()

	waitEvent(t, judgeSub)
	select {
	case payload := <-congratsSub.C:
		t.Errorf("unexpected congrats event: %v", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLoopPersistsFailureResults(t *testing.T) {
	store := newFakeStore()
	bus := event.NewBus()
	defer bus.Close()
	judgeSub := bus.Subscribe(event.TopicJudge, 4)

	loop := NewLoop(store, &fakeJudger{result: func(sub *model.Submission) *model.JudgeResult {
		return model.FailureResult(context.DeadlineExceeded)
	}}, bus, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	store.push(&model.Submission{SubID: 9, UID: 42, ExpID: 1, Pending: true})
	loop.Wake()

	judged := waitEvent(t, judgeSub).(model.JudgeEvent)
	if judged.CompileSuccess || judged.Accepted {
		t.Errorf("unexpected judge event: %+v", judged)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.pending) != 0 {
		t.Error("failed submission left pending")
	}
	if result := store.results[9]; result == nil || result.Completed {
		t.Errorf("unexpected stored result: %+v", store.results[9])
	}
}

func TestLoopProcessesInSubmitOrder(t *testing.T) {
	store := newFakeStore()
	bus := event.NewBus()
	defer bus.Close()
	judgeSub := bus.Subscribe(event.TopicJudge, 8)

	loop := NewLoop(store, &fakeJudger{result: func(*model.Submission) *model.JudgeResult {
		return &model.JudgeResult{CompileSuccess: true, Completed: true}
	}}, bus, time.Hour)

	store.push(&model.Submission{SubID: 1, UID: 42, ExpID: 1, Pending: true})
	store.push(&model.Submission{SubID: 2, UID: 42, ExpID: 1, Pending: true})
	store.push(&model.Submission{SubID: 3, UID: 42, ExpID: 1, Pending: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	loop.Wake()

	for want := int64(1); want <= 3; want++ {
		judged := waitEvent(t, judgeSub).(model.JudgeEvent)
		if judged.SubID != want {
			t.Errorf("judged %d before %d", judged.SubID, want)
		}
	}
}
