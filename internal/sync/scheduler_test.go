package sync

import (
	"context"
	"testing"
	"time"

	"truelens/internal/core"
)

func TestScheduler_TriggersImmediatePass(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	scraper := &fakeScraper{articles: []core.SourceArticle{
		sourceArticle("1", "Scheduled one", base.Add(time.Hour)),
		sourceArticle("2", "Scheduled two", base.Add(time.Hour)),
	}}
	store := &fakeStore{watermark: base}

	orch := newTestOrchestrator(scraper, &fakeClusterer{}, &fakeSummarizer{}, store)
	scheduler := NewScheduler(orch, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		persisted := len(store.persisted)
		store.mu.Unlock()
		if persisted == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduler never triggered the initial pass")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

func TestNewScheduler_DefaultsInterval(t *testing.T) {
	orch := newTestOrchestrator(&fakeScraper{}, &fakeClusterer{}, &fakeSummarizer{}, &fakeStore{})
	scheduler := NewScheduler(orch, 0)
	if scheduler.interval != 12*time.Hour {
		t.Errorf("expected 12h default interval, got %v", scheduler.interval)
	}
}
