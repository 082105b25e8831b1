package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "cfpbot/pkg/logx"
)

func testClient() *Client {
	// High rate so tests don't sit in the limiter.
	return NewClient(FetchConfig{RatePerSec: 1000, Timeout: 5 * time.Second}, logx.Nop())
}

func TestElsevierFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "CFPBot/0.5" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Write([]byte(`{"specialIssues": [
			{"journalTitle": "Food Chemistry", "title": "Novel Proteins", "description": "d", "submissionDeadline": "30 November 2026", "url": "https://e/1"},
			{"title": "No Journal", "submissionDeadline": "rolling", "url": "https://e/2"}
		]}`))
	}))
	defer srv.Close()

	p := NewElsevier(testClient())
	p.Feed = srv.URL

	got, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Journal != "Food Chemistry" || got[0].Provider != "Elsevier" {
		t.Fatalf("unexpected entry: %+v", got[0])
	}
	if got[0].Deadline == nil || got[0].Deadline.String() != "2026-11-30" {
		t.Fatalf("deadline not parsed: %v", got[0].Deadline)
	}
	if got[1].Journal != "Elsevier Journal" {
		t.Fatalf("missing journal fallback: %q", got[1].Journal)
	}
	if got[1].Deadline != nil {
		t.Fatalf("expected nil deadline for %q", "rolling")
	}
}

func TestWileyFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"journalTitle": "J", "title": "T", "description": "d", "deadline": "1 May 2026", "url": "https://w/1"}
		]`))
	}))
	defer srv.Close()

	p := NewWiley(testClient())
	p.Feed = srv.URL

	got, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Provider != "Wiley" || got[0].Deadline == nil {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestWileyFetchBadJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	p := NewWiley(testClient())
	p.Feed = srv.URL
	if _, err := p.Fetch(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMDPIFetchPartialFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/journal/broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"specialIssues": [{"title": "SI", "deadline": "2 June 2026", "url": "https://m/1"}]}`))
	}))
	defer srv.Close()

	p := NewMDPI(testClient(), []string{"foods", "broken"}, logx.Nop())
	p.FeedFormat = srv.URL + "/journal/%s"

	got, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch should tolerate one broken journal: %v", err)
	}
	if len(got) != 1 || got[0].Journal != "Foods" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestMDPIFetchAllFailed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewMDPI(testClient(), []string{"foods"}, logx.Nop())
	p.FeedFormat = srv.URL + "/journal/%s"
	if _, err := p.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when every journal fails")
	}
}

func TestClientRejectsBadStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := testClient().Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}
