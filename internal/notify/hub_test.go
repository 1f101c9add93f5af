package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cryptoj/internal/judge/event"
	"cryptoj/internal/judge/model"
)

func TestHubStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := event.NewBus()
	defer bus.Close()
	hub := NewHub(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/events", hub.Handle)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens on the server goroutine after the handshake.
	time.Sleep(100 * time.Millisecond)

	bus.Publish(event.TopicJudge, model.JudgeEvent{SubID: 7, Title: "AES Lab", Accepted: true})
	bus.Publish(event.TopicCongrats, model.CongratsEvent{SubID: 7, Username: "alice"})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read judge frame: %v", err)
	}
	if first.Type != "judge" {
		t.Errorf("frame type = %q, want judge", first.Type)
	}
	var judged model.JudgeEvent
	if err := json.Unmarshal(first.Payload, &judged); err != nil {
		t.Fatalf("decode judge payload: %v", err)
	}
	if judged.SubID != 7 || !judged.Accepted {
		t.Errorf("unexpected judge payload: %+v", judged)
	}

	var second struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read congrats frame: %v", err)
	}
	if second.Type != "congrats" {
		t.Errorf("frame type = %q, want congrats", second.Type)
	}
}
