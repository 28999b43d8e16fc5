package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "same content produces same ID",
			content: "what changed",
		},
		{
			name:    "empty string",
			content: "",
		},
		{
			name:    "long content",
			content: "Describe any differences in equipment placement between these two construction site photos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("what changed")
	id2 := IDFromContent("what stayed the same")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestNewImageID(t *testing.T) {
	id1 := NewImageID()
	id2 := NewImageID()

	if id1 == "" || id2 == "" {
		t.Fatal("NewImageID() returned empty string")
	}
	if id1 == id2 {
		t.Errorf("NewImageID() produced duplicate IDs: %s", id1)
	}
	if len(id1) != 36 {
		t.Errorf("NewImageID() = %q, expected canonical UUID length 36", id1)
	}
}
