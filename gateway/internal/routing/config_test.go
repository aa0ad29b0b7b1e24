package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolverResolveCluster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.json")
	data := `{
  "default_cluster": "cluster-a",
  "clusters": {
    "cluster-a": {"brokers": ["localhost:9092"]},
    "cluster-b": {"brokers": ["localhost:9093"]}
  },
  "routes": [
    {"district_id": "north", "cluster": "cluster-b"}
  ]
}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write routes file: %v", err)
	}
	resolver, err := Load(path)
	if err != nil {
		t.Fatalf("load routes: %v", err)
	}
	if got, ok := resolver.ResolveCluster("North"); !ok || got != "cluster-b" {
		t.Fatalf("expected cluster-b, got %q (ok=%v)", got, ok)
	}
	if got, ok := resolver.ResolveCluster("west"); !ok || got != "cluster-a" {
		t.Fatalf("expected default cluster-a, got %q (ok=%v)", got, ok)
	}
}

func TestResolveTopicPrecedence(t *testing.T) {
	resolver := Resolver{Config: Config{
		DefaultTopic: "telemetry.readings",
		TopicMap:     map[string]string{"reading_recorded": "telemetry.readings"},
	}}
	if got := resolver.ResolveTopic("reading_recorded", "override.topic"); got != "override.topic" {
		t.Fatalf("requested topic should win, got %q", got)
	}
	if got := resolver.ResolveTopic("reading_recorded", ""); got != "telemetry.readings" {
		t.Fatalf("topic map should apply, got %q", got)
	}
	if got := resolver.ResolveTopic("unknown_event", ""); got != "telemetry.readings" {
		t.Fatalf("default topic should apply, got %q", got)
	}
}
