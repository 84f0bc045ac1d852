package datapush

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPushText(t *testing.T) {
	var got textMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	p := NewPusher(srv.URL)
	if err := p.PushText(context.Background(), "匹配 2 行"); err != nil {
		t.Fatalf("PushText: %v", err)
	}
	if got.MsgType != "text" || got.Text.Content != "匹配 2 行" {
		t.Errorf("payload = %+v", got)
	}
}

func TestPushTextRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Write([]byte(`{"errcode":310000,"errmsg":"keywords not in content"}`))
			return
		}
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	p := NewPusher(srv.URL)
	p.interval = time.Millisecond
	if err := p.PushText(context.Background(), "x"); err != nil {
		t.Fatalf("PushText: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPushTextGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPusher(srv.URL)
	p.interval = time.Millisecond
	if err := p.PushText(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}

	if err := NewPusher("").PushText(context.Background(), "x"); err == nil {
		t.Error("empty webhook should fail")
	}
}
