package zhmc

import "testing"

func TestHostOnlyStripsSchemeAndPort(t *testing.T) {
	cases := map[string]string{
		"https://9.1.2.3:6794": "9.1.2.3",
		"http://hmc.example.com:6794": "hmc.example.com",
		"hmc.example.com":      "hmc.example.com",
	}
	for in, want := range cases {
		if got := hostOnly(in); got != want {
			t.Errorf("hostOnly(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestManagerIsReusedByListURI(t *testing.T) {
	c, err := NewClient(SessionConfig{Hosts: []string{"https://hmc.example.com:6794"}})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	m1 := c.Manager("partition", "/api/partitions", "partitions")
	m2 := c.Manager("partition", "/api/partitions", "partitions")
	if m1 != m2 {
		t.Error("Manager() should return the same instance for the same listURI")
	}
}

func TestStopEngineIsSafeWithoutAnEngine(t *testing.T) {
	c, err := NewClient(SessionConfig{Hosts: []string{"https://hmc.example.com:6794"}})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.stopEngine() // must not panic when no engine was ever started
}
