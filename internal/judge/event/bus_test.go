package event

import (
	"testing"

	"cryptoj/internal/judge/model"
)

func TestBusDeliversPerTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	judgeSub := bus.Subscribe(TopicJudge, 4)
	congratsSub := bus.Subscribe(TopicCongrats, 4)

	bus.Publish(TopicJudge, model.JudgeEvent{SubID: 1})
	bus.Publish(TopicCongrats, model.CongratsEvent{SubID: 2, Username: "alice"})

	got := (<-judgeSub.C).(model.JudgeEvent)
	if got.SubID != 1 {
		t.Errorf("judge event subid = %d", got.SubID)
	}
	congrats := (<-congratsSub.C).(model.CongratsEvent)
	if congrats.Username != "alice" {
		t.Errorf("congrats username = %q", congrats.Username)
	}

	select {
	case extra := <-judgeSub.C:
		t.Errorf("unexpected cross-topic delivery: %v", extra)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(TopicJudge, 1)
	bus.Publish(TopicJudge, model.JudgeEvent{SubID: 1})
	bus.Publish(TopicJudge, model.JudgeEvent{SubID: 2}) // dropped, buffer full

	got := (<-sub.C).(model.JudgeEvent)
	if got.SubID != 1 {
		t.Errorf("subid = %d, want 1", got.SubID)
	}
	select {
	case extra := <-sub.C:
		t.Errorf("overflow event was not dropped: %v", extra)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(TopicJudge, 1)
	bus.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Error("channel still open after unsubscribe")
	}
	bus.Publish(TopicJudge, model.JudgeEvent{SubID: 1})
	bus.Unsubscribe(sub) // idempotent
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicJudge, 1)
	bus.Close()
	bus.Close() // idempotent

	if _, ok := <-sub.C; ok {
		t.Error("channel still open after close")
	}
	bus.Publish(TopicJudge, model.JudgeEvent{SubID: 1})

	late := bus.Subscribe(TopicJudge, 1)
	if _, ok := <-late.C; ok {
		t.Error("late subscription channel should be closed")
	}
}
