package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func waitForSubscriber(t *testing.T, hub *Hub, topic string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func aliveBeat(t *testing.T, topic string) Beat {
	return func() (Event, bool) {
		ev, _ := NewEvent(topic, TypeHeartbeat, map[string]any{"active": true})
		return ev, true
	}
}

func TestServeSSE_DeliversUntilEnded(t *testing.T) {
	hub := NewHub()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/voice/events/5", nil), rec)

	done := make(chan error, 1)
	go func() { done <- ServeSSE(c, hub, "note:5", time.Hour, aliveBeat(t, "note:5")) }()
	waitForSubscriber(t, hub, "note:5")

	ctx := context.Background()
	hub.Publish(ctx, mustEvent(t, "note:5", TypeTranscription, map[string]string{"text": "first"}))
	hub.Publish(ctx, mustEvent(t, "note:5", TypeEnded, map[string]int{"note_id": 5}))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeSSE: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}

	body := rec.Body.String()
	if rec.Header().Get(echo.HeaderContentType) != "text/event-stream" {
		t.Errorf("unexpected content type %q", rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.Contains(body, "event: transcription\ndata: {\"text\":\"first\"}\n\n") {
		t.Errorf("missing transcription event in %q", body)
	}
	if !strings.Contains(body, "event: ended\n") {
		t.Errorf("missing ended event in %q", body)
	}
	if strings.Index(body, "transcription") > strings.Index(body, "ended") {
		t.Error("expected events in publish order")
	}
	if hub.SubscriberCount("note:5") != 0 {
		t.Error("expected subscriber to be removed")
	}
}

func TestServeSSE_UnknownTopicSendsEndedOnce(t *testing.T) {
	hub := NewHub()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	beat := func() (Event, bool) {
		ev, _ := NewEvent("note:9", TypeEnded, map[string]int{"note_id": 9})
		return ev, false
	}
	if err := ServeSSE(c, hub, "note:9", time.Hour, beat); err != nil {
		t.Fatalf("ServeSSE: %v", err)
	}

	if got := strings.Count(rec.Body.String(), "event: "); got != 1 {
		t.Errorf("expected exactly one event, got %d in %q", got, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), "event: ended\n") {
		t.Errorf("expected ended event, got %q", rec.Body.String())
	}
}

func TestServeSSE_HeartbeatsWhileAlive(t *testing.T) {
	hub := NewHub()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	var calls int32
	beat := func() (Event, bool) {
		// connect check, one heartbeat, then the session is gone
		if atomic.AddInt32(&calls, 1) <= 2 {
			ev, _ := NewEvent("note:3", TypeHeartbeat, map[string]any{"note_id": 3, "active": true})
			return ev, true
		}
		ev, _ := NewEvent("note:3", TypeEnded, map[string]int{"note_id": 3})
		return ev, false
	}

	if err := ServeSSE(c, hub, "note:3", 5*time.Millisecond, beat); err != nil {
		t.Fatalf("ServeSSE: %v", err)
	}

	body := rec.Body.String()
	if strings.Count(body, "event: heartbeat\n") != 1 || strings.Count(body, "event: ended\n") != 1 {
		t.Errorf("expected one heartbeat then ended, got %q", body)
	}
}

func TestServeSSE_StopsWhenClientLeaves(t *testing.T) {
	hub := NewHub()
	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	done := make(chan error, 1)
	go func() { done <- ServeSSE(c, hub, "note:1", time.Hour, aliveBeat(t, "note:1")) }()
	waitForSubscriber(t, hub, "note:1")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after client disconnect")
	}
}

func TestServeWS_DeliversEvents(t *testing.T) {
	hub := NewHub()
	e := echo.New()
	e.GET("/ws/:topic", func(c echo.Context) error {
		topic := c.Param("topic")
		return ServeWS(c, hub, topic, time.Hour, aliveBeat(t, topic))
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/note:7"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForSubscriber(t, hub, "note:7")

	hub.Publish(context.Background(), mustEvent(t, "note:7", TypeTranscription, map[string]string{"text": "hi"}))
	hub.Publish(context.Background(), mustEvent(t, "note:7", TypeEnded, nil))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []Event
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("bad message %s: %v", msg, err)
		}
		got = append(got, ev)
	}

	if len(got) != 2 || got[0].Type != TypeTranscription || got[1].Type != TypeEnded {
		t.Errorf("unexpected events %+v", got)
	}
}
