package intake

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"cryptoj/internal/judge/model"
	appErr "cryptoj/pkg/errors"
)

type fakeStore struct {
	experiment *model.Experiment
	pending    bool
	inserted   []*model.Submission
	nextID     int64
}

func (s *fakeStore) Experiment(ctx context.Context, expID int64) (*model.Experiment, error) {
	if s.experiment == nil {
		return nil, appErr.Newf(appErr.ExperimentNotFound, "experiment %d not found", expID)
	}
	return s.experiment, nil
}

func (s *fakeStore) HasPendingFor(ctx context.Context, expID, uid int64) (bool, error) {
	return s.pending, nil
}

func (s *fakeStore) Insert(ctx context.Context, sub *model.Submission) (int64, error) {
	s.inserted = append(s.inserted, sub)
	s.nextID++
	return s.nextID, nil
}

func newTestIntake(t *testing.T, store Store, wake func()) *Intake {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(store, client, wake)
}

func testStore() *fakeStore {
	return &fakeStore{experiment: &model.Experiment{
		ExpID:           1,
		CompileCommands: map[string]string{"c": "/usr/bin/gcc -o ${output} ${input}"},
	}}
}

func TestSubmitEnqueuesAndWakes(t *testing.T) {
	store := testStore()
	woke := 0
	intake := newTestIntake(t, store, func() { woke++ })

	subID, err := intake.Submit(context.Background(), 42, 1, "c", "int main() {}")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if subID != 1 || len(store.inserted) != 1 {
		t.Errorf("subid = %d, inserted = %d", subID, len(store.inserted))
	}
	if store.inserted[0].UID != 42 || store.inserted[0].Language != "c" {
		t.Errorf("unexpected submission: %+v", store.inserted[0])
	}
	if woke != 1 {
		t.Errorf("wake called %d times", woke)
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	store := testStore()
	intake := newTestIntake(t, store, nil)
	ctx := context.Background()

	if _, err := intake.Submit(ctx, 42, 1, "c", "int main() {}"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := intake.Submit(ctx, 42, 1, "c", "int main() {}")
	if !appErr.Is(err, appErr.DuplicateSubmission) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	// A different user or different code is not a duplicate.
	if _, err := intake.Submit(ctx, 43, 1, "c", "int main() {}"); err != nil {
		t.Errorf("other user rejected: %v", err)
	}
	if _, err := intake.Submit(ctx, 42, 1, "c", "int main() { return 0; }"); err != nil {
		t.Errorf("changed code rejected: %v", err)
	}
	if len(store.inserted) != 3 {
		t.Errorf("inserted = %d, want 3", len(store.inserted))
	}
}

func TestSubmitRejectsUnknownLanguage(t *testing.T) {
	intake := newTestIntake(t, testStore(), nil)
	_, err := intake.Submit(context.Background(), 42, 1, "rs", "fn main() {}")
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected language rejection, got %v", err)
	}
}

func TestSubmitRejectsWhilePending(t *testing.T) {
	store := testStore()
	store.pending = true
	intake := newTestIntake(t, store, nil)
	_, err := intake.Submit(context.Background(), 42, 1, "c", "int main() {}")
	if !appErr.Is(err, appErr.SubmissionPending) {
		t.Fatalf("expected pending rejection, got %v", err)
	}
}

func TestSubmitWithoutRedisSkipsDedup(t *testing.T) {
	store := testStore()
	intake := New(store, nil, nil)
	ctx := context.Background()

	if _, err := intake.Submit(ctx, 42, 1, "c", "int main() {}"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := intake.Submit(ctx, 42, 1, "c", "int main() {}"); err != nil {
		t.Fatalf("second submit without dedup: %v", err)
	}
}
