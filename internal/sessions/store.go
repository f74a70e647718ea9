// Package sessions persists conversation history as an append-only
// JSON-lines log: one header line followed by entry lines. Records are
// validated on append and on open; the file is never rewritten.
package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header is the first line of a session file.
type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	Cwd       string `json:"cwd"`
}

// Entry is one appended record. Payload carries the record body; ParentID
// must reference a prior entry's ID when set.
type Entry struct {
	ID       string          `json:"id"`
	ParentID string          `json:"parent_id,omitempty"`
	TS       string          `json:"ts"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewEntry builds an entry with a fresh uuid and current timestamp.
func NewEntry(parentID string, payload json.RawMessage) Entry {
	return Entry{
		ID:       uuid.NewString(),
		ParentID: parentID,
		TS:       time.Now().UTC().Format(time.RFC3339),
		Payload:  payload,
	}
}

// Store is an open session log.
type Store struct {
	path          string
	file          *os.File
	header        Header
	entries       []Entry
	indexByID     map[string]int
	currentLeafID string
}

// sessionRoot is where a workspace's session files live.
func sessionRoot(cwd string) string {
	return filepath.Join(cwd, ".tape", "sessions")
}

// CreateNew starts a fresh session file under cwd's session root.
func CreateNew(cwd string) (*Store, error) {
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("sessions: resolving cwd: %w", err)
	}
	root := sessionRoot(absCwd)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("sessions: creating session root %s: %w", root, err)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	sessionID := uuid.NewString()
	fileName := fmt.Sprintf("%s-%s.jsonl", strings.ReplaceAll(createdAt, ":", "-"), sessionID)
	path := filepath.Join(root, fileName)

	header := Header{Version: 1, SessionID: sessionID, CreatedAt: createdAt, Cwd: absCwd}
	if err := validateHeader(path, header); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sessions: creating session file %s: %w", path, err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("sessions: encoding header: %w", err)
	}
	if _, err := file.Write(append(headerJSON, '\n')); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("sessions: writing header to %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("sessions: syncing header to %s: %w", path, err)
	}

	return &Store{
		path:      path,
		file:      file,
		header:    header,
		indexByID: make(map[string]int),
	}, nil
}

// Open replays and validates an existing session file, leaving it ready
// for appends.
func Open(path string) (*Store, error) {
	readFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sessions: opening session file %s: %w", path, err)
	}
	defer readFile.Close()

	var header *Header
	var entries []Entry
	indexByID := make(map[string]int)

	scanner := bufio.NewScanner(readFile)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()

		if lineNumber == 1 {
			var parsed Header
			if err := json.Unmarshal([]byte(line), &parsed); err != nil || parsed.Version == 0 {
				return nil, fmt.Errorf("sessions: %s:%d: invalid header record", path, lineNumber)
			}
			if err := validateHeader(path, parsed); err != nil {
				return nil, err
			}
			header = &parsed
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("sessions: %s:%d: invalid entry record: %v", path, lineNumber, err)
		}
		if err := validateEntry(path, lineNumber, entry); err != nil {
			return nil, err
		}
		if _, exists := indexByID[entry.ID]; exists {
			return nil, fmt.Errorf("sessions: %s:%d: duplicate entry id %s", path, lineNumber, entry.ID)
		}
		if entry.ParentID != "" {
			if _, exists := indexByID[entry.ParentID]; !exists {
				return nil, fmt.Errorf("sessions: %s:%d: entry %s references unknown parent %s", path, lineNumber, entry.ID, entry.ParentID)
			}
		}
		indexByID[entry.ID] = len(entries)
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sessions: reading %s: %w", path, err)
	}
	if header == nil {
		return nil, fmt.Errorf("sessions: %s: missing header", path)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sessions: opening %s for append: %w", path, err)
	}

	store := &Store{
		path:      path,
		file:      file,
		header:    *header,
		entries:   entries,
		indexByID: indexByID,
	}
	if len(entries) > 0 {
		store.currentLeafID = entries[len(entries)-1].ID
	}
	return store, nil
}

// LatestSessionPath returns the most recently modified .jsonl under cwd's
// session root; path order breaks modification-time ties.
func LatestSessionPath(cwd string) (string, error) {
	absCwd, err := filepath.Abs(cwd)
	if err != nil {
		return "", fmt.Errorf("sessions: resolving cwd: %w", err)
	}
	root := sessionRoot(absCwd)
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("sessions: no sessions found under %s", root)
	}

	var latestPath string
	var latestModified time.Time
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || filepath.Ext(dirEntry.Name()) != ".jsonl" {
			continue
		}
		info, err := dirEntry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, dirEntry.Name())
		modified := info.ModTime()
		if latestPath == "" || modified.After(latestModified) ||
			(modified.Equal(latestModified) && path > latestPath) {
			latestPath = path
			latestModified = modified
		}
	}
	if latestPath == "" {
		return "", fmt.Errorf("sessions: no sessions found under %s", root)
	}
	return latestPath, nil
}

// Append validates and writes one entry. The write is synced before the
// in-memory state is updated.
func (s *Store) Append(entry Entry) error {
	lineNumber := len(s.entries) + 2
	if err := validateEntry(s.path, lineNumber, entry); err != nil {
		return err
	}
	if _, exists := s.indexByID[entry.ID]; exists {
		return fmt.Errorf("sessions: %s:%d: duplicate entry id %s", s.path, lineNumber, entry.ID)
	}
	if entry.ParentID != "" {
		if _, exists := s.indexByID[entry.ParentID]; !exists {
			return fmt.Errorf("sessions: %s:%d: entry %s references unknown parent %s", s.path, lineNumber, entry.ID, entry.ParentID)
		}
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("sessions: encoding entry: %w", err)
	}
	if _, err := s.file.Write(append(entryJSON, '\n')); err != nil {
		return fmt.Errorf("sessions: writing entry to %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sessions: syncing entry to %s: %w", s.path, err)
	}

	s.indexByID[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	s.currentLeafID = entry.ID
	return nil
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Header returns the session header.
func (s *Store) Header() Header { return s.header }

// Entries returns the replayed entries.
func (s *Store) Entries() []Entry { return s.entries }

// CurrentLeafID returns the last appended entry id, or "" when empty.
func (s *Store) CurrentLeafID() string { return s.currentLeafID }

// Close releases the file handle.
func (s *Store) Close() error { return s.file.Close() }

func validateHeader(path string, header Header) error {
	if header.Version != 1 {
		return fmt.Errorf("sessions: %s: unsupported session version %d", path, header.Version)
	}
	if _, err := uuid.Parse(header.SessionID); err != nil {
		return fmt.Errorf("sessions: %s: invalid session id %q", path, header.SessionID)
	}
	if _, err := time.Parse(time.RFC3339, header.CreatedAt); err != nil {
		return fmt.Errorf("sessions: %s: invalid created_at %q", path, header.CreatedAt)
	}
	if !filepath.IsAbs(header.Cwd) {
		return fmt.Errorf("sessions: %s: header cwd %q must be absolute", path, header.Cwd)
	}
	return nil
}

func validateEntry(path string, lineNumber int, entry Entry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("sessions: %s:%d: entry id is required", path, lineNumber)
	}
	if _, err := time.Parse(time.RFC3339, entry.TS); err != nil {
		return fmt.Errorf("sessions: %s:%d: invalid entry timestamp %q", path, lineNumber, entry.TS)
	}
	return nil
}
