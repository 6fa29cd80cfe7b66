package registry

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo", "foo"},
		{"[METADATA]foo", "foo"},
		{"[METADATA] foo ", "foo"},
		{"  bar  ", "bar"},
		{"[METADATA]", "[METADATA]"},
		{"   ", "   "},
		{"", ""},
		{"foo [METADATA]", "foo [METADATA]"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !IsPlaceholder("[METADATA]abc") {
		t.Error("metadata label should be a placeholder")
	}
	if !IsPlaceholder("  [METADATA]abc") {
		t.Error("surrounding space must not hide the metadata label")
	}
	if IsPlaceholder("abc") || IsPlaceholder("") {
		t.Error("plain names are not placeholders")
	}
}
