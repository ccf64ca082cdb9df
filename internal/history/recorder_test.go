package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/pulse/internal/clock"
	"github.com/dgnsrekt/pulse/internal/surface"
)

type memSink struct {
	mu      sync.Mutex
	records []Visit
}

func (s *memSink) Write(record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.(Visit))
	return nil
}

func navigated(id int, url string) surface.Event {
	return surface.Event{Kind: surface.EventUpdated, Changed: surface.FieldURL, Surface: surface.Info{ID: id, URL: url, Title: surface.DefaultTitle}}
}

func titled(id int, url, title string) surface.Event {
	return surface.Event{Kind: surface.EventUpdated, Changed: surface.FieldTitle, Surface: surface.Info{ID: id, URL: url, Title: title}}
}

func TestRecorderRecordsVisitsAndTitles(t *testing.T) {
	sink := &memSink{}
	fc := clock.NewFake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	r := NewRecorder("sess", sink, fc)

	r.Observe(navigated(1, "about:blank"))
	r.Observe(navigated(1, "https://go.dev/"))
	r.Observe(titled(1, "https://go.dev/", "The Go Programming Language"))
	r.Observe(surface.Event{Kind: surface.EventSwitched, Surface: surface.Info{ID: 1}})

	recent := r.Recent(0)
	if len(recent) != 1 {
		t.Fatalf("Recent() = %+v; want one visit", recent)
	}
	if got := recent[0]; got.URL != "https://go.dev/" || got.Title != "The Go Programming Language" || got.SessionID != "sess" {
		t.Fatalf("Recent()[0] = %+v; want titled go.dev visit", got)
	}
	if len(sink.records) != 2 || sink.records[0].Kind != "visit" || sink.records[1].Kind != "title" {
		t.Fatalf("persisted = %+v; want visit then title", sink.records)
	}
}

type failingSink struct{}

func (failingSink) Write(any) error { return errors.New("disk full") }

func TestRecorderLogsSinkFailure(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	r := NewRecorder("sess", failingSink{}, clock.NewFake(time.Unix(0, 0)))
	r.Observe(navigated(1, "https://go.dev/"))

	if got := r.Recent(0); len(got) != 1 {
		t.Fatalf("Recent() = %+v; want the visit kept in memory", got)
	}
	out := buf.String()
	if !strings.Contains(out, "history journal write failed") || !strings.Contains(out, "disk full") {
		t.Fatalf("log = %q; want journal write failure", out)
	}
}

func TestSearchNewestFirstWithLimit(t *testing.T) {
	r := NewRecorder("sess", nil, clock.NewFake(time.Unix(0, 0)))
	for i, u := range []string{
		"https://news.example/a",
		"https://shop.example/",
		"https://news.example/b",
		"https://news.example/c",
		"https://NEWS.example/d",
	} {
		r.Observe(navigated(i+1, u))
	}

	got := r.Search("news", 0)
	if len(got) != DefaultSearchLimit {
		t.Fatalf("Search() returned %d; want %d", len(got), DefaultSearchLimit)
	}
	want := []string{"https://NEWS.example/d", "https://news.example/c", "https://news.example/b"}
	for i := range want {
		if got[i].URL != want[i] {
			t.Fatalf("Search()[%d] = %q; want %q", i, got[i].URL, want[i])
		}
	}
	if got := r.Search("  ", 5); got != nil {
		t.Fatalf("Search(blank) = %+v; want nil", got)
	}
}

func TestRecorderCapacity(t *testing.T) {
	r := NewRecorder("sess", nil, nil)
	r.capacity = 3
	for i := 0; i < 5; i++ {
		r.Observe(navigated(1, "https://e.example/"+string(rune('a'+i))))
	}
	got := r.Recent(10)
	if len(got) != 3 || got[0].URL != "https://e.example/e" || got[2].URL != "https://e.example/c" {
		t.Fatalf("Recent() = %+v; want last three newest first", got)
	}
}

func TestJournalWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, "sess", 8, 1)
	if err := j.Write(Visit{Kind: "visit", URL: "https://a.example"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := j.Write(Visit{Kind: "visit", URL: "https://b.example"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := j.Write(Visit{}); err == nil {
		t.Fatal("Write() after Close error = nil; want error")
	}

	path := filepath.Join(dir, time.Now().UTC().Format("2006-01-02"), "sess.jsonl")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()
	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v Visit
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		urls = append(urls, v.URL)
	}
	if len(urls) != 2 || urls[0] != "https://a.example" || urls[1] != "https://b.example" {
		t.Fatalf("journal urls = %v; want a then b", urls)
	}
}
