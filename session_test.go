package iris

import (
	"errors"
	"testing"

	"github.com/mpetrov/iris/transport"
)

func TestSessionStore(t *testing.T) {
	t.Run("get absent", func(t *testing.T) {
		st := NewSessionStore()
		if _, ok := st.Get("nope"); ok {
			t.Error("expected no session")
		}
	})

	t.Run("get or create is idempotent", func(t *testing.T) {
		st := NewSessionStore()
		a := st.GetOrCreate("u1")
		b := st.GetOrCreate("u1")
		if a != b {
			t.Error("expected the same session back")
		}
		if expected, actual := 1, st.Len(); expected != actual {
			t.Errorf("expected %d sessions, got %d", expected, actual)
		}
	})

	t.Run("append to absent session", func(t *testing.T) {
		st := NewSessionStore()
		err := st.Append("nope", transport.TextTurn(transport.RoleUser, "hi"))
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("append preserves order", func(t *testing.T) {
		st := NewSessionStore()
		st.GetOrCreate("u1")
		for _, text := range []string{"a", "b", "c"} {
			if err := st.Append("u1", transport.TextTurn(transport.RoleUser, text)); err != nil {
				t.Fatalf("unexpected error %s", err)
			}
		}

		sess, _ := st.Get("u1")
		turns := sess.Turns()
		if expected, actual := 3, len(turns); expected != actual {
			t.Fatalf("expected %d turns, got %d", expected, actual)
		}
		for i, text := range []string{"a", "b", "c"} {
			if turns[i].Text() != text {
				t.Errorf("turn %d: expected %q, got %q", i, text, turns[i].Text())
			}
		}
	})

	t.Run("turns returns a copy", func(t *testing.T) {
		st := NewSessionStore()
		st.GetOrCreate("u1")
		st.Append("u1", transport.TextTurn(transport.RoleUser, "original"))

		sess, _ := st.Get("u1")
		turns := sess.Turns()
		turns[0] = transport.TextTurn(transport.RoleUser, "mutated")

		if sess.Turns()[0].Text() != "original" {
			t.Error("mutating the returned slice leaked into the session")
		}
	})

	t.Run("clear removes state entirely", func(t *testing.T) {
		st := NewSessionStore()
		st.GetOrCreate("u1")
		st.Append("u1", transport.TextTurn(transport.RoleUser, "hi"))

		st.Clear("u1")
		if _, ok := st.Get("u1"); ok {
			t.Error("expected session to be gone")
		}
		if err := st.Append("u1", transport.TextTurn(transport.RoleUser, "hi")); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after clear, got %v", err)
		}
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		st := NewSessionStore()
		st.Clear("never-existed")
		st.Clear("never-existed")
	})
}
