package iris

import (
	"strings"
	"testing"

	"github.com/mpetrov/iris/transport"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestBuildInitial(t *testing.T) {
	b := NewMessageBuilder()
	turns := b.BuildInitial("What is this?", jpegHeader)

	if expected, actual := 1, len(turns); expected != actual {
		t.Fatalf("expected %d turn, got %d", expected, actual)
	}

	turn := turns[0]
	if turn.Role != transport.RoleUser {
		t.Errorf("expected a user turn, got %q", turn.Role)
	}
	if expected, actual := 2, len(turn.Content); expected != actual {
		t.Fatalf("expected %d content blocks, got %d", expected, actual)
	}
	if turn.Content[0].Type != transport.BlockText {
		t.Error("expected the text block first")
	}
	if !strings.Contains(turn.Content[0].Text, "What is this?") {
		t.Error("prompt missing from the text block")
	}
	if !strings.Contains(turn.Content[0].Text, "tags") {
		t.Error("tag instructions missing from the text block")
	}
	if turn.Content[1].Type != transport.BlockImage {
		t.Error("expected the image block second")
	}
	if string(turn.Content[1].Data) != string(jpegHeader) {
		t.Error("image bytes not carried through")
	}
	if turn.Content[1].MediaType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", turn.Content[1].MediaType)
	}
}

func TestBuildFollowUp(t *testing.T) {
	b := NewMessageBuilder()
	history := b.BuildInitial("Describe this image.", jpegHeader)
	history = append(history, transport.TextTurn(transport.RoleAssistant, "A cat."))

	turns := b.BuildFollowUp(history, "What color is it?")

	if expected, actual := 3, len(turns); expected != actual {
		t.Fatalf("expected %d turns, got %d", expected, actual)
	}

	last := turns[len(turns)-1]
	if last.Role != transport.RoleUser {
		t.Errorf("expected a user turn, got %q", last.Role)
	}
	if last.HasImage() {
		t.Error("follow-up must not re-attach the image")
	}
	if !strings.Contains(last.Text(), "What color is it?") {
		t.Error("question missing from the follow-up turn")
	}

	// The input history must come back unchanged.
	if expected, actual := 2, len(history); expected != actual {
		t.Errorf("history mutated: expected len %d, got %d", expected, actual)
	}
}
