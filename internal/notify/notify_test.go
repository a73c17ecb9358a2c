package notify

import (
	"errors"
	"testing"

	"github.com/go-stomp/stomp/v3"

	zhmcerrors "github.com/zhmcclient/zhmc-go/internal/errors"
)

func TestDeliverPropertyChange(t *testing.T) {
	r := NewReceiver(Config{Host: "hmc.example.com"})
	msg := &stomp.Message{
		Destination: "/topic/notif",
		Body:        []byte(`{"notification-type":"property-change","object-uri":"/api/partitions/1"}`),
	}
	r.deliver(msg)

	select {
	case n := <-r.Notifications():
		if n.Type != "property-change" {
			t.Errorf("Type = %q, want property-change", n.Type)
		}
		if n.Err != nil {
			t.Errorf("Err = %v, want nil", n.Err)
		}
		if n.Body["object-uri"] != "/api/partitions/1" {
			t.Errorf("object-uri = %v, want /api/partitions/1", n.Body["object-uri"])
		}
	default:
		t.Fatal("no notification delivered")
	}
}

func TestDeliverParseError(t *testing.T) {
	r := NewReceiver(Config{Host: "hmc.example.com"})
	msg := &stomp.Message{
		Destination: "/topic/notif",
		Body:        []byte(`not json`),
	}
	r.deliver(msg)

	n := <-r.Notifications()
	var parseErr *zhmcerrors.NotificationParseError
	if !errors.As(n.Err, &parseErr) {
		t.Fatalf("Err = %v, want *NotificationParseError", n.Err)
	}
}

func TestDeliverJMSError(t *testing.T) {
	r := NewReceiver(Config{Host: "hmc.example.com"})
	msg := &stomp.Message{
		Destination: "/topic/notif",
		Err:         errors.New("broker unavailable"),
	}
	r.deliver(msg)

	n := <-r.Notifications()
	var jmsErr *zhmcerrors.NotificationJMSError
	if !errors.As(n.Err, &jmsErr) {
		t.Fatalf("Err = %v, want *NotificationJMSError", n.Err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := NewReceiver(Config{Host: "hmc.example.com"})
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestEnqueueDropsWhenQueueFullAndClosed(t *testing.T) {
	r := NewReceiver(Config{Host: "hmc.example.com", QueueSize: 1})
	r.enqueue(Notification{Type: "first"}) // fills the one-slot buffer
	r.Close()
	r.enqueue(Notification{Type: "second"}) // buffer full, closed: must drop, not block

	n := <-r.Notifications()
	if n.Type != "first" {
		t.Fatalf("Type = %q, want first", n.Type)
	}
	select {
	case <-r.Notifications():
		t.Fatal("expected only the first notification to have been delivered")
	default:
	}
}
