package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vovakirdan/mentorpad-server/internal/store/sqlite"
)

func TestBuiltin(t *testing.T) {
	seeds, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if len(seeds) != 4 {
		t.Fatalf("expected 4 exercises, got %d", len(seeds))
	}
	for _, s := range seeds {
		if s.InitialCode == "" || s.Solution == "" || s.InitialCode == s.Solution {
			t.Errorf("exercise %q is incomplete", s.Title)
		}
	}
	if !strings.HasPrefix(seeds[0].InitialCode, "async function fetchData()") {
		t.Errorf("unexpected first exercise: %q", seeds[0].InitialCode)
	}
}

func TestLoadFileRejectsMissingTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	if err := os.WriteFile(path, []byte("- initial_code: x\n  solution: y\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected error for missing title")
	}
}

func TestApplyReplacesRooms(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	seeds, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if _, err := Apply(ctx, st, seeds); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	rooms, err := Apply(ctx, st, seeds[:2])
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	summaries, err := st.ListSummaries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 || len(rooms) != 2 {
		t.Fatalf("expected 2 rooms after reseed, got %d", len(summaries))
	}
	if rooms[0].CurrentCode != seeds[0].InitialCode {
		t.Fatalf("current code must start as initial code")
	}
}
