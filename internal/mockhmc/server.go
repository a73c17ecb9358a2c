// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockhmc

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/zhmcclient/zhmc-go/internal/notify"
)

// Server is an in-memory fake HMC (spec.md 4.H): an http.Handler speaking
// the same REST contract as a real HMC (session logon/logoff, resource
// list/get/update/delete, the 202/job-uri async flow) over an in-memory
// resource tree, plus synthetic notification publication for exercising
// the auto-update engine without a live STOMP connection. Grounded on
// internal/api/router_core.go's chi.Router wiring, generalized from the
// teacher's fixed /api/v1 route table to the HMC's resource-URI scheme.
type Server struct {
	mux  chi.Router
	tree *tree
	jobs *jobTable

	mu            sync.Mutex
	sessions      map[string]string // token -> userid
	notifications chan notify.Notification
	notifyTopic   string

	// failNextAuthOnce, when true, makes the next authenticated request
	// return 403.5 (token expired) once, then clears itself. Used to drive
	// spec.md's scenario C (re-logon on token expiry) without a real clock.
	failNextAuthOnce bool
}

// NewServer constructs an empty mock HMC. Use AddCPC/AddPartition/AddAdapter
// (or LoadDefinition) to populate the resource tree before serving.
func NewServer() *Server {
	s := &Server{
		tree:          newTree(),
		jobs:          newJobTable(),
		sessions:      make(map[string]string),
		notifications: make(chan notify.Notification, 256),
		notifyTopic:   "object-notification-topic-" + uuid.NewString(),
	}
	s.mux = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Notifications returns the channel synthetic property-change/status-change/
// inventory-change events are published to (spec.md 4.H). A test driving
// scenario D/auto-update convergence reads this channel and feeds each
// value into an autoupdate.Engine via Engine.Apply, the same path Serve
// uses for real STOMP frames.
func (s *Server) Notifications() <-chan notify.Notification { return s.notifications }

// FailNextAuthenticatedRequest arranges for the next authenticated request
// (after logon) to fail with a 403.5-equivalent token-expired response,
// exercising spec.md's re-logon invariance (scenario C, property 6).
func (s *Server) FailNextAuthenticatedRequest() {
	s.mu.Lock()
	s.failNextAuthOnce = true
	s.mu.Unlock()
}

// AddCPC adds a top-level CPC resource with the given name and properties.
func (s *Server) AddCPC(name string, properties map[string]any) string {
	props := cloneProps(properties)
	props["name"] = name
	n := newNode("cpc", "", props)
	s.tree.add(n)
	return n.uri
}

// AddPartition adds a partition under cpcURI with the given name and
// initial status (spec.md 4.H: "active"/"stopped"/"degraded"/"paused").
func (s *Server) AddPartition(cpcURI, name, status string, properties map[string]any) string {
	props := cloneProps(properties)
	props["name"] = name
	props["status"] = status
	n := newNode("partition", cpcURI, props)
	s.tree.add(n)
	return n.uri
}

// AddAdapter adds an adapter under cpcURI with the given name and state.
func (s *Server) AddAdapter(cpcURI, name, state string, properties map[string]any) string {
	props := cloneProps(properties)
	props["name"] = name
	props["state"] = state
	n := newNode("adapter", cpcURI, props)
	s.tree.add(n)
	return n.uri
}

func cloneProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/sessions", s.handleLogon)
	r.Delete("/api/sessions/this-session", s.handleLogoff)

	r.Get("/api/jobs/{jobID}", s.authenticated(s.handleGetJob))

	r.Get("/api/cpcs", s.authenticated(s.handleListCPCs))
	r.Get("/api/cpcs/{cpcID}", s.authenticated(s.handleGetResource("cpc")))
	r.Get("/api/cpcs/{cpcID}/partitions", s.authenticated(s.handleListChildren("partition")))
	r.Get("/api/cpcs/{cpcID}/adapters", s.authenticated(s.handleListChildren("adapter")))

	r.Get("/api/partitions/{partitionID}", s.authenticated(s.handleGetResource("partition")))
	r.Post("/api/partitions/{partitionID}", s.authenticated(s.handleUpdateResource("partition")))
	r.Delete("/api/partitions/{partitionID}", s.authenticated(s.handleDeleteResource("partition")))
	r.Post("/api/partitions/{partitionID}/operations/start", s.authenticated(s.handlePartitionStart))
	r.Post("/api/partitions/{partitionID}/operations/stop", s.authenticated(s.handlePartitionStop))

	r.Get("/api/adapters/{adapterID}", s.authenticated(s.handleGetResource("adapter")))

	return r
}

func (s *Server) handleLogon(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Userid   string `json:"userid"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, 1, "malformed logon body")
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = body.Userid
	topic := s.notifyTopic
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"api-session":       token,
		"notification-topic": topic,
	})
}

func (s *Server) handleLogoff(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-API-Session")
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// authenticated wraps a handler with session-token validation and the
// one-shot 403.5 injection FailNextAuthenticatedRequest arranges.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-API-Session")
		s.mu.Lock()
		_, known := s.sessions[token]
		fail := s.failNextAuthOnce
		if fail {
			s.failNextAuthOnce = false
		}
		s.mu.Unlock()

		if fail || !known {
			writeError(w, http.StatusForbidden, 5, "session token expired")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	uri := "/api/jobs/" + chi.URLParam(r, "jobID")
	j, ok := s.jobs.get(uri)
	if !ok {
		writeError(w, http.StatusNotFound, 0, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, j.snapshot())
}

func (s *Server) handleListCPCs(w http.ResponseWriter, r *http.Request) {
	nodes := s.tree.listChildren("", "cpc")
	nodes = filterByQuery(nodes, r)
	writeJSON(w, http.StatusOK, map[string]any{"cpcs": snapshotAll(nodes)})
}

func (s *Server) handleListChildren(class string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentURI := "/api/cpcs/" + chi.URLParam(r, "cpcID")
		nodes := s.tree.listChildren(parentURI, class)
		nodes = filterByQuery(nodes, r)
		writeJSON(w, http.StatusOK, map[string]any{class + "s": snapshotAll(nodes)})
	}
}

func (s *Server) handleGetResource(class string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := resourceURI(class, r)
		n, ok := s.tree.get(uri)
		if !ok {
			writeError(w, http.StatusNotFound, 0, class+" not found")
			return
		}
		writeJSON(w, http.StatusOK, n.snapshot())
	}
}

func (s *Server) handleUpdateResource(class string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := resourceURI(class, r)
		n, ok := s.tree.get(uri)
		if !ok {
			writeError(w, http.StatusNotFound, 0, class+" not found")
			return
		}
		var changes map[string]any
		if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
			writeError(w, http.StatusBadRequest, 1, "malformed update body")
			return
		}
		n.update(changes)
		s.publishPropertyChange(n, changes)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeleteResource(class string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := resourceURI(class, r)
		n, ok := s.tree.get(uri)
		if !ok {
			writeError(w, http.StatusNotFound, 0, class+" not found")
			return
		}
		s.tree.remove(uri)
		s.publishInventoryChange("remove", n)
		w.WriteHeader(http.StatusNoContent)
	}
}

// partitionStartableStates/partitionStoppableStates enforce spec.md 4.H's
// documented preconditions: start only from a stopped-family state, stop
// only from active/degraded.
var partitionStartableStates = map[string]bool{"stopped": true}
var partitionStoppableStates = map[string]bool{"active": true, "degraded": true}

func (s *Server) handlePartitionStart(w http.ResponseWriter, r *http.Request) {
	uri := "/api/partitions/" + chi.URLParam(r, "partitionID")
	n, ok := s.tree.get(uri)
	if !ok {
		writeError(w, http.StatusNotFound, 0, "partition not found")
		return
	}

	status, _ := n.get("status")
	if !partitionStartableStates[statusString(status)] {
		writeError(w, http.StatusConflict, 1, "partition cannot be started from status "+statusString(status))
		return
	}

	j := s.jobs.create(func() (bool, string, map[string]any) {
		n.set("status", "active")
		s.publishPropertyChange(n, map[string]any{"status": "active"})
		return true, "", nil
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"job-uri": j.uri})
}

func (s *Server) handlePartitionStop(w http.ResponseWriter, r *http.Request) {
	uri := "/api/partitions/" + chi.URLParam(r, "partitionID")
	n, ok := s.tree.get(uri)
	if !ok {
		writeError(w, http.StatusNotFound, 0, "partition not found")
		return
	}

	status, _ := n.get("status")
	if !partitionStoppableStates[statusString(status)] {
		writeError(w, http.StatusConflict, 1, "partition cannot be stopped from status "+statusString(status))
		return
	}

	j := s.jobs.create(func() (bool, string, map[string]any) {
		n.set("status", "stopped")
		s.publishPropertyChange(n, map[string]any{"status": "stopped"})
		return true, "", nil
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"job-uri": j.uri})
}

func (s *Server) publishPropertyChange(n *node, changes map[string]any) {
	reports := make([]any, 0, len(changes))
	for k, v := range changes {
		reports = append(reports, map[string]any{"property-name": k, "new-value": v})
	}
	s.notifications <- notify.Notification{
		Topic: s.notifyTopic,
		Type:  "property-change",
		Body: map[string]any{
			"element-uri":    n.uri,
			"class":          n.class,
			"change-reports": reports,
		},
	}
}

func (s *Server) publishInventoryChange(changeType string, n *node) {
	body := n.snapshot()
	body["notification-change-type"] = changeType
	body["element-uri"] = n.uri
	body["class"] = n.class
	s.notifications <- notify.Notification{
		Topic: s.notifyTopic,
		Type:  "inventory-change",
		Body:  body,
	}
}

func resourceURI(class string, r *http.Request) string {
	var id string
	switch class {
	case "cpc":
		id = chi.URLParam(r, "cpcID")
	case "partition":
		id = chi.URLParam(r, "partitionID")
	case "adapter":
		id = chi.URLParam(r, "adapterID")
	}
	return "/api/" + class + "s/" + id
}

func statusString(v any) string {
	s, _ := v.(string)
	return s
}

func snapshotAll(nodes []*node) []map[string]any {
	out := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		out[i] = n.snapshot()
	}
	return out
}

// filterByQuery applies the server-side "name"/"status"/"state" filters a
// real HMC list endpoint accepts (resource.serverFilterable sends only
// "name" and "status" as query parameters; everything else is left to the
// client's Manager to filter). Each
// query key may repeat with multiple values, which the HMC treats as an
// OR match (spec.md 8 scenario E).
func filterByQuery(nodes []*node, r *http.Request) []*node {
	q := r.URL.Query()
	out := nodes[:0:0]
	for _, n := range nodes {
		if !matchesQuery(n, "name", q) || !matchesQuery(n, "status", q) || !matchesQuery(n, "state", q) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func matchesQuery(n *node, key string, q map[string][]string) bool {
	want, ok := q[key]
	if !ok || len(want) == 0 {
		return true
	}
	got, _ := n.get(key)
	gotStr, _ := got.(string)
	for _, w := range want {
		if strings.EqualFold(w, gotStr) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, httpStatus, reasonCode int, message string) {
	writeJSON(w, httpStatus, map[string]any{
		"http-status": httpStatus,
		"reason":      reasonCode,
		"message":     message,
	})
}
