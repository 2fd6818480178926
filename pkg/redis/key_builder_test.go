package redis

import "testing"

func TestKeyBuilderBuild(t *testing.T) {
	kb := NewKeyBuilder("Photonic", "Query")

	if got, want := kb.Build("list", "abc"), "photonic:query:list:abc"; got != want {
		t.Fatalf("Build() = %q, want %q", got, want)
	}
	if got, want := kb.Build("list", ""), "photonic:query:list"; got != want {
		t.Fatalf("Build() with no attribute = %q, want %q", got, want)
	}
}
