package autoupdate

import (
	"context"
	"testing"
	"time"

	"github.com/zhmcclient/zhmc-go/internal/notify"
	"github.com/zhmcclient/zhmc-go/internal/resource"
)

func TestApplyPropertyChangeUpdatesSubscribedResource(t *testing.T) {
	r := resource.NewResource(nil, "partition", "/api/partitions/1", map[string]any{"name": "part1"})
	recv := notify.NewReceiver(notify.Config{Host: "hmc.example.com"})
	e := NewEngine(recv)
	e.SubscribeResource(r)

	e.Apply(notify.Notification{
		Type: "property-change",
		Body: map[string]any{
			"element-uri": "/api/partitions/1",
			"change-reports": []any{
				map[string]any{"property-name": "status", "new-value": "active"},
			},
		},
	})

	v, ok := r.Prop("status")
	if !ok {
		t.Fatal("status property not applied")
	}
	if s, _ := v.AsString(); s != "active" {
		t.Errorf("status = %q, want active", s)
	}
}

func TestApplyPropertyChangeIgnoresUnsubscribedURI(t *testing.T) {
	r := resource.NewResource(nil, "partition", "/api/partitions/1", nil)
	recv := notify.NewReceiver(notify.Config{Host: "hmc.example.com"})
	e := NewEngine(recv)
	e.SubscribeResource(r)

	e.Apply(notify.Notification{
		Type: "property-change",
		Body: map[string]any{
			"element-uri": "/api/partitions/other",
			"change-reports": []any{
				map[string]any{"property-name": "status", "new-value": "active"},
			},
		},
	})

	if _, ok := r.Prop("status"); ok {
		t.Fatal("unsubscribed resource should not have been updated")
	}
}

func TestApplyInventoryChangeRemoveMarksCeased(t *testing.T) {
	r := resource.NewResource(nil, "partition", "/api/partitions/1", nil)
	recv := notify.NewReceiver(notify.Config{Host: "hmc.example.com"})
	e := NewEngine(recv)
	e.SubscribeResource(r)

	e.Apply(notify.Notification{
		Type: "inventory-change",
		Body: map[string]any{
			"notification-change-type": "remove",
			"element-uri":              "/api/partitions/1",
			"class":                    "partition",
		},
	})

	if r.Life() != resource.LifeCeased {
		t.Errorf("Life() = %v, want LifeCeased", r.Life())
	}
}

func TestApplyInventoryChangeAddAppendsToManager(t *testing.T) {
	m := resource.NewManager(nil, "partition", "/api/partitions", "partitions")
	recv := notify.NewReceiver(notify.Config{Host: "hmc.example.com"})
	e := NewEngine(recv)
	e.SubscribeManager("partition", m)

	e.Apply(notify.Notification{
		Type: "inventory-change",
		Body: map[string]any{
			"notification-change-type": "add",
			"element-uri":              "/api/partitions/2",
			"class":                    "partition",
			"name":                     "part2",
		},
	})

	// Find with a single name filter resolves via the cache and the
	// manager's live resource map, never touching the (nil) session.
	found, err := m.Find(context.Background(), resource.FilterArgs{"name": resource.String("part2")})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if found.URI() != "/api/partitions/2" {
		t.Errorf("URI() = %q, want /api/partitions/2", found.URI())
	}
}

func TestSubscribeUnsubscribeTracksEmpty(t *testing.T) {
	r := resource.NewResource(nil, "partition", "/api/partitions/1", nil)
	recv := notify.NewReceiver(notify.Config{Host: "hmc.example.com"})
	e := NewEngine(recv)

	if !e.Empty() {
		t.Fatal("new engine should be empty")
	}
	e.SubscribeResource(r)
	if e.Empty() {
		t.Fatal("engine should not be empty after subscribe")
	}
	e.UnsubscribeResource(r)
	if !e.Empty() {
		t.Fatal("engine should be empty after unsubscribe")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	recv := notify.NewReceiver(notify.Config{Host: "hmc.example.com"})
	e := NewEngine(recv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancel")
	}
}
