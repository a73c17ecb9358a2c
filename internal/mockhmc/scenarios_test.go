package mockhmc

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhmcclient/zhmc-go/internal/autoupdate"
	"github.com/zhmcclient/zhmc-go/internal/notify"
	"github.com/zhmcclient/zhmc-go/internal/resource"
	"github.com/zhmcclient/zhmc-go/internal/session"
)

// newTestSession spins up an httptest.Server fronting a fresh mock HMC and
// a Session pointed at it, mirroring spec.md 8's end-to-end scenarios A-E.
func newTestSession(t *testing.T) (*Server, *session.Session, func()) {
	t.Helper()
	mock := NewServer()
	httpSrv := httptest.NewServer(mock)

	sess, err := session.New(session.Config{
		Hosts:    []string{httpSrv.URL},
		Userid:   "apiuser",
		Password: "pw",
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	return mock, sess, httpSrv.Close
}

// Scenario A: logon and list CPCs.
func TestScenarioLogonAndListCPCs(t *testing.T) {
	mock, sess, closeSrv := newTestSession(t)
	defer closeSrv()

	mock.AddCPC("CPC1", map[string]any{"status": "active"})
	mock.AddCPC("CPC2", map[string]any{"status": "active"})

	ctx := context.Background()
	if err := sess.Logon(ctx); err != nil {
		t.Fatalf("Logon() error = %v", err)
	}

	cpcs := resource.NewManager(sess, "cpc", "/api/cpcs", "cpcs")
	found, err := cpcs.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("List() returned %d CPCs, want 2", len(found))
	}
}

// Scenario B: asynchronous partition start with completion.
func TestScenarioPartitionStartWaitsForCompletion(t *testing.T) {
	mock, sess, closeSrv := newTestSession(t)
	defer closeSrv()

	cpcURI := mock.AddCPC("CPC1", nil)
	partURI := mock.AddPartition(cpcURI, "P1", "stopped", nil)

	ctx := context.Background()
	if err := sess.Logon(ctx); err != nil {
		t.Fatalf("Logon() error = %v", err)
	}

	start := time.Now()
	result, err := sess.Post(ctx, partURI+"/operations/start", session.PostOptions{
		WaitForCompletion: true,
		OperationTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Post(start) error = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("partition start took longer than the 5s operation timeout")
	}
	_ = result

	part := resource.NewResource(sess, "partition", partURI, nil)
	status, err := part.GetProperty(ctx, "status")
	if err != nil {
		t.Fatalf("GetProperty(status) error = %v", err)
	}
	s, _ := status.AsString()
	if s != "active" && s != "degraded" {
		t.Errorf("status = %q, want active or degraded", s)
	}
}

// Scenario C: re-logon on token expiry. The mock fails the next
// authenticated request with 403.5; the Session must transparently
// re-logon and retry, succeeding without surfacing an error.
func TestScenarioRelogonOnTokenExpiry(t *testing.T) {
	mock, sess, closeSrv := newTestSession(t)
	defer closeSrv()

	cpcURI := mock.AddCPC("CPC1", nil)

	ctx := context.Background()
	if err := sess.Logon(ctx); err != nil {
		t.Fatalf("Logon() error = %v", err)
	}

	mock.FailNextAuthenticatedRequest()

	body, err := sess.Get(ctx, cpcURI)
	if err != nil {
		t.Fatalf("Get() after token expiry error = %v, want transparent re-logon", err)
	}
	if body["object-uri"] != cpcURI {
		t.Errorf("object-uri = %v, want %v", body["object-uri"], cpcURI)
	}
}

// Scenario D: auto-update of a resource property via a published
// notification, fed into the engine the same way a live STOMP frame
// would be.
func TestScenarioAutoUpdateConvergesOnNotification(t *testing.T) {
	mock, sess, closeSrv := newTestSession(t)
	defer closeSrv()

	cpcURI := mock.AddCPC("CPC1", nil)
	partURI := mock.AddPartition(cpcURI, "P1", "stopped", nil)

	ctx := context.Background()
	if err := sess.Logon(ctx); err != nil {
		t.Fatalf("Logon() error = %v", err)
	}

	part := resource.NewResource(sess, "partition", partURI, map[string]any{"status": "stopped"})

	recv := notify.NewReceiver(notify.Config{Host: sess.Host()})
	engine := autoupdate.NewEngine(recv)
	engine.SubscribeResource(part)

	if _, err := sess.Post(ctx, partURI+"/operations/start", session.PostOptions{}); err != nil {
		t.Fatalf("Post(start) error = %v", err)
	}

	select {
	case n := <-mock.Notifications():
		engine.Apply(n)
	case <-time.After(time.Second):
		t.Fatal("no notification published for partition start")
	}

	v, ok := part.Prop("status")
	if !ok {
		t.Fatal("status property not applied by auto-update")
	}
	if s, _ := v.AsString(); s != "active" {
		t.Errorf("status = %q, want active", s)
	}
}

// Scenario E: filter with a multi-value list on adapter state, applied
// client-side since "state" is not a server-filterable key.
func TestScenarioFilterAdapterStateMultiValue(t *testing.T) {
	mock, sess, closeSrv := newTestSession(t)
	defer closeSrv()

	cpcURI := mock.AddCPC("CPC1", nil)
	mock.AddAdapter(cpcURI, "OSA1", "online", nil)
	mock.AddAdapter(cpcURI, "OSA2", "offline", nil)
	mock.AddAdapter(cpcURI, "OSA3", "online-reserved", nil)

	ctx := context.Background()
	if err := sess.Logon(ctx); err != nil {
		t.Fatalf("Logon() error = %v", err)
	}

	adapters := resource.NewManager(sess, "adapter", cpcURI+"/adapters", "adapters")
	found, err := adapters.List(ctx, resource.FilterArgs{
		"state": resource.List([]resource.Value{resource.String("online"), resource.String("online-reserved")}),
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("List() returned %d adapters, want 2", len(found))
	}
}
