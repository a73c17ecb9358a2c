package resource

import (
	"context"
	"net/http"
	"testing"
)

func TestManagerListAndFilter(t *testing.T) {
	sess, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" && r.URL.Path == "/api/partitions" {
			w.Header().Set("Content-Type", "application/json")
			// "name" is server-filterable, so it arrives as a query
			// parameter and the server applies it, as the HMC does.
			if r.URL.Query().Get("name") == "PART1" {
				w.Write([]byte(`{"partitions":[
					{"name":"PART1","object-uri":"/api/partitions/1","status":"active"}
				]}`))
				return
			}
			w.Write([]byte(`{"partitions":[
				{"name":"PART1","object-uri":"/api/partitions/1","status":"active"},
				{"name":"PART2","object-uri":"/api/partitions/2","status":"stopped"}
			]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	m := NewManager(sess, "partition", "/api/partitions", "partitions")
	all, err := m.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() len = %d, want 2", len(all))
	}

	filtered, err := m.List(context.Background(), FilterArgs{"name": String("PART1")})
	if err != nil {
		t.Fatalf("List() with filter error = %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("filtered len = %d, want 1", len(filtered))
	}
	if filtered[0].URI() != "/api/partitions/1" {
		t.Errorf("filtered[0].URI() = %q, want /api/partitions/1", filtered[0].URI())
	}
}

func TestManagerFindByNameUsesCache(t *testing.T) {
	var listCalls int
	sess, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" && r.URL.Path == "/api/partitions" {
			listCalls++
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"partitions":[{"name":"PART1","object-uri":"/api/partitions/1"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	m := NewManager(sess, "partition", "/api/partitions", "partitions")
	r1, err := m.Find(context.Background(), FilterArgs{"name": String("PART1")})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if r1.URI() != "/api/partitions/1" {
		t.Errorf("Find() URI = %q, want /api/partitions/1", r1.URI())
	}
	if listCalls != 1 {
		t.Fatalf("listCalls after first Find = %d, want 1", listCalls)
	}

	if err := m.EnableAutoUpdate(context.Background()); err != nil {
		t.Fatalf("EnableAutoUpdate() error = %v", err)
	}
	// EnableAutoUpdate re-queries once to seed the live list.
	if listCalls != 2 {
		t.Fatalf("listCalls after EnableAutoUpdate = %d, want 2", listCalls)
	}

	// A second Find by the same name is served from the name->URI cache
	// and the live list, without another list request.
	r2, err := m.Find(context.Background(), FilterArgs{"name": String("PART1")})
	if err != nil {
		t.Fatalf("second Find() error = %v", err)
	}
	if r2.URI() != "/api/partitions/1" {
		t.Errorf("second Find() URI = %q, want /api/partitions/1", r2.URI())
	}
	if listCalls != 2 {
		t.Fatalf("listCalls after second Find = %d, want 2", listCalls)
	}
}

func TestManagerFindNoMatch(t *testing.T) {
	sess, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" && r.URL.Path == "/api/partitions" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"partitions":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	m := NewManager(sess, "partition", "/api/partitions", "partitions")
	if _, err := m.Find(context.Background(), FilterArgs{"name": String("GHOST")}); err == nil {
		t.Error("Find() with no match, want error")
	}
}

func TestManagerInvalidateCache(t *testing.T) {
	sess, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" && r.URL.Path == "/api/partitions" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"partitions":[{"name":"PART1","object-uri":"/api/partitions/1"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	m := NewManager(sess, "partition", "/api/partitions", "partitions")
	if _, err := m.Find(context.Background(), FilterArgs{"name": String("PART1")}); err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	m.InvalidateCache()
	if _, ok := m.cache.Get("PART1"); ok {
		t.Error("cache entry survived InvalidateCache()")
	}
}
