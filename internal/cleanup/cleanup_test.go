package cleanup

import (
	"testing"
	"time"

	"staywatch/internal/clock"
	"staywatch/internal/store"
)

type fakeStore struct {
	store.Store
	taskCutoff time.Time
	logCutoff  time.Time
	calls      int
}

func (f *fakeStore) DeleteSettledTasksBefore(cutoff time.Time) (int64, error) {
	f.taskCutoff = cutoff
	f.calls++
	return 12, nil
}

func (f *fakeStore) DeleteCrawlLogsBefore(cutoff time.Time) (int64, error) {
	f.logCutoff = cutoff
	f.calls++
	return 3, nil
}

func TestRunAppliesRetentionWindows(t *testing.T) {
	now := time.Date(2026, 5, 1, 4, 0, 0, 0, time.UTC)
	st := &fakeStore{}
	svc := NewService(st, clock.NewFake(now))

	result, err := svc.Run(DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.TasksDeleted != 12 || result.CrawlLogsDeleted != 3 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if want := now.AddDate(0, 0, -14); !st.taskCutoff.Equal(want) {
		t.Errorf("task cutoff: expected %v, got %v", want, st.taskCutoff)
	}
	if want := now.AddDate(0, 0, -90); !st.logCutoff.Equal(want) {
		t.Errorf("crawl log cutoff: expected %v, got %v", want, st.logCutoff)
	}
}

func TestRunDryRunDeletesNothing(t *testing.T) {
	st := &fakeStore{}
	svc := NewService(st, clock.NewFake(time.Date(2026, 5, 1, 4, 0, 0, 0, time.UTC)))

	cfg := DefaultConfig()
	cfg.DryRun = true
	result, err := svc.Run(cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if st.calls != 0 {
		t.Errorf("dry run must not touch the store, got %d calls", st.calls)
	}
	if !result.DryRun || result.TasksDeleted != 0 {
		t.Errorf("unexpected dry-run result: %+v", result)
	}
}
