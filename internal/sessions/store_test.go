package sessions

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
)

func TestCreateNewWritesValidatedHeader(t *testing.T) {
	dir := t.TempDir()
	store, err := CreateNew(dir)
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}
	defer store.Close()

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("file lines = %d, want header only", len(lines))
	}

	var header Header
	if err := json.Unmarshal([]byte(lines[0]), &header); err != nil {
		t.Fatalf("header parse: %v", err)
	}
	if header.Version != 1 {
		t.Errorf("version = %d", header.Version)
	}
	if header.Cwd == "" || !strings.HasPrefix(header.Cwd, "/") {
		t.Errorf("cwd not absolute: %q", header.Cwd)
	}
}

func TestAppendValidatesParentAndUniqueness(t *testing.T) {
	store, err := CreateNew(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	first := NewEntry("", json.RawMessage(`{"role":"user"}`))
	if err := store.Append(first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if store.CurrentLeafID() != first.ID {
		t.Errorf("leaf = %q, want %q", store.CurrentLeafID(), first.ID)
	}

	second := NewEntry(first.ID, nil)
	if err := store.Append(second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	if err := store.Append(first); err == nil {
		t.Error("duplicate id accepted")
	}

	dangling := NewEntry("missing-parent", nil)
	if err := store.Append(dangling); err == nil {
		t.Error("dangling parent accepted")
	}
}

func TestOpenReplaysAndRejectsCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := CreateNew(dir)
	if err != nil {
		t.Fatal(err)
	}
	first := NewEntry("", json.RawMessage(`{"n":1}`))
	second := NewEntry(first.ID, json.RawMessage(`{"n":2}`))
	if err := store.Append(first); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(second); err != nil {
		t.Fatal(err)
	}
	path := store.Path()
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if len(reopened.Entries()) != 2 {
		t.Errorf("entries = %d, want 2", len(reopened.Entries()))
	}
	if reopened.CurrentLeafID() != second.ID {
		t.Errorf("leaf = %q, want %q", reopened.CurrentLeafID(), second.ID)
	}

	third := NewEntry(second.ID, nil)
	if err := reopened.Append(third); err != nil {
		t.Errorf("append after reopen: %v", err)
	}
}

func TestOpenRejectsRelativeCwdHeader(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.jsonl"
	header := `{"version":1,"session_id":"` + "6ba7b810-9dad-11d1-80b4-00c04fd430c8" + `","created_at":"2026-01-02T03:04:05Z","cwd":"relative/path"}`
	if err := os.WriteFile(path, []byte(header+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "absolute") {
		t.Errorf("err = %v, want absolute-cwd rejection", err)
	}
}

func TestOpenRejectsDanglingParent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/dangling.jsonl"
	header := `{"version":1,"session_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","created_at":"2026-01-02T03:04:05Z","cwd":"` + dir + `"}`
	entry := `{"id":"e1","parent_id":"ghost","ts":"2026-01-02T03:04:06Z"}`
	if err := os.WriteFile(path, []byte(header+"\n"+entry+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "unknown parent") {
		t.Errorf("err = %v, want dangling-parent rejection", err)
	}
}

func TestLatestSessionPathPicksMostRecent(t *testing.T) {
	dir := t.TempDir()

	older, err := CreateNew(dir)
	if err != nil {
		t.Fatal(err)
	}
	older.Close()

	newer, err := CreateNew(dir)
	if err != nil {
		t.Fatal(err)
	}
	newer.Close()

	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(newer.Path(), future, future); err != nil {
		t.Fatal(err)
	}

	latest, err := LatestSessionPath(dir)
	if err != nil {
		t.Fatalf("LatestSessionPath: %v", err)
	}
	if latest != newer.Path() {
		t.Errorf("latest = %q, want %q", latest, newer.Path())
	}
}
