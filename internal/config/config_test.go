package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.DataDir != ".truelens" {
		t.Errorf("unexpected data dir: %q", cfg.App.DataDir)
	}
	if cfg.Gemini.SummaryModel != "gemini-flash-lite-latest" {
		t.Errorf("unexpected summary model: %q", cfg.Gemini.SummaryModel)
	}
	if cfg.Gemini.FactualityModel != "gemini-flash-latest" {
		t.Errorf("unexpected factuality model: %q", cfg.Gemini.FactualityModel)
	}
	if cfg.Gemini.EmbeddingDimensions != 768 {
		t.Errorf("unexpected embedding dimensions: %d", cfg.Gemini.EmbeddingDimensions)
	}
	if cfg.Cluster.SimilarityThreshold != 0.7 {
		t.Errorf("unexpected similarity threshold: %v", cfg.Cluster.SimilarityThreshold)
	}
	if cfg.Scrape.AdaDeranaPages != 5 || cfg.Scrape.DailyMirrorPages != 5 {
		t.Errorf("unexpected page counts: %d, %d", cfg.Scrape.AdaDeranaPages, cfg.Scrape.DailyMirrorPages)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("unexpected port: %d", cfg.Server.Port)
	}

	if got := cfg.Gemini.PacingDuration(); got != 250*time.Millisecond {
		t.Errorf("unexpected pacing: %v", got)
	}
	if got := cfg.Scrape.TimeoutDuration(); got != 20*time.Second {
		t.Errorf("unexpected scrape timeout: %v", got)
	}
	if got := cfg.Sync.IntervalDuration(); got != 12*time.Hour {
		t.Errorf("unexpected sync interval: %v", got)
	}
	if got := cfg.Sync.DeadlineDuration(); got != 30*time.Minute {
		t.Errorf("unexpected sync deadline: %v", got)
	}
}

func TestLoad_CachesConfig(t *testing.T) {
	first, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first != second {
		t.Error("expected the same cached config instance")
	}
	if Get() != first {
		t.Error("Get should return the cached config")
	}
}

func TestParseDurations_Invalid(t *testing.T) {
	cfg := &Config{}
	cfg.Gemini.RequestPacing = "not-a-duration"
	cfg.Scrape.Timeout = "20s"
	cfg.Sync.Interval = "12h"
	cfg.Sync.Deadline = "30m"

	if err := parseDurations(cfg); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
