package stream

import (
	"testing"
	"time"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	client := hub.Register(TopicUpload)
	defer hub.Unregister(client)

	payload := []byte("uploading")
	hub.Broadcast(TopicUpload, payload)

	select {
	case msg := <-client.Send:
		if string(msg) != "uploading" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubTopicsAreIsolated(t *testing.T) {
	hub := NewHub()
	session := hub.Register(TopicSession)
	defer hub.Unregister(session)

	hub.Broadcast(TopicUpload, []byte("noise"))

	select {
	case <-session.Send:
		t.Fatalf("session observer should not see upload traffic")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub()
	client := hub.Register(TopicSession)
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
}

func TestSlowObserverDoesNotBlock(t *testing.T) {
	hub := NewHub()
	client := hub.Register(TopicUpload)
	defer hub.Unregister(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Broadcast(TopicUpload, []byte("m"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on full observer buffer")
	}
}
