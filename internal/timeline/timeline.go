// Package timeline implements the per-branch append-only revision log and
// its HEAD pointer. A commit that commits at least one source, and a
// reindex that is not a dry run, each append exactly one revision. The
// Init and Release operations are defined, but nothing in this module
// appends them: workspace initialization writes no revision and there is
// no release command. The timeline is never rewritten once written.
package timeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// Operation identifies what kind of event a Revision records.
type Operation string

const (
	OperationInit    Operation = "Init"
	OperationCommit  Operation = "Commit"
	OperationReindex Operation = "Reindex"
	OperationRelease Operation = "Release"
)

// Revision is a single immutable entry in a branch's timeline.
type Revision struct {
	ID        string          `json:"id"`
	ParentID  *string         `json:"parentId"`
	Branch    string          `json:"branch"`
	Operation Operation       `json:"operation"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Store manages the timeline.jsonl and HEAD files for a single branch
// directory (R/.guided/knowledge/<branch>).
type Store struct {
	branchRoot string
}

// New returns a Store rooted at the given branch directory.
func New(branchRoot string) *Store {
	return &Store{branchRoot: branchRoot}
}

func (s *Store) timelinePath() string {
	return filepath.Join(s.branchRoot, "timeline.jsonl")
}

func (s *Store) headPath() string {
	return filepath.Join(s.branchRoot, "HEAD")
}

// ReadHead returns the current HEAD revision id for the branch, or "" if
// the branch has no revisions yet.
func (s *Store) ReadHead() (string, error) {
	data, err := os.ReadFile(s.headPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", gikerrors.Wrap(gikerrors.KindHeadRead, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writeHead atomically replaces the HEAD file's contents.
func (s *Store) writeHead(id string) error {
	if err := os.MkdirAll(s.branchRoot, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindHeadWrite, err)
	}

	tmp, err := os.CreateTemp(s.branchRoot, ".HEAD-*.tmp")
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindHeadWrite, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.WriteString(id); err != nil {
		_ = tmp.Close()
		return gikerrors.Wrap(gikerrors.KindHeadWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return gikerrors.Wrap(gikerrors.KindHeadWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return gikerrors.Wrap(gikerrors.KindHeadWrite, err)
	}

	if err := os.Rename(tmpPath, s.headPath()); err != nil {
		return gikerrors.Wrap(gikerrors.KindHeadWrite, err)
	}
	return nil
}

// NewRevisionID allocates a revision id without recording anything.
// Callers that must stamp provenance (source entries, vector payloads)
// with the revision id before the revision itself can be appended -
// because the artifacts it describes have to exist first - generate one
// here and pass it to AppendRevisionWithID once those artifacts are
// written.
func NewRevisionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// AppendRevision generates a fresh revision id, sets parentId to the
// current HEAD (nil if this is the branch's first revision), appends the
// entry to timeline.jsonl, and atomically updates HEAD. If the process
// fails between the append and the HEAD update, the trailing timeline
// entry is orphaned: the next AppendRevision call derives its parentId
// from HEAD (not from the last timeline line), so the orphan is simply
// never chained to and is ignored by every read path that walks from
// HEAD backward.
func (s *Store) AppendRevision(branch string, op Operation, payload any) (string, error) {
	return s.AppendRevisionWithID(NewRevisionID(), branch, op, payload)
}

// AppendRevisionWithID is AppendRevision for a caller that already
// allocated id via NewRevisionID.
func (s *Store) AppendRevisionWithID(id, branch string, op Operation, payload any) (string, error) {
	head, err := s.ReadHead()
	if err != nil {
		return "", err
	}

	var parentID *string
	if head != "" {
		parentID = &head
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", gikerrors.Wrap(gikerrors.KindTimelineWrite, err)
	}

	rev := Revision{
		ID:        id,
		ParentID:  parentID,
		Branch:    branch,
		Operation: op,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	if err := s.appendLine(rev); err != nil {
		return "", err
	}
	if err := s.writeHead(rev.ID); err != nil {
		return "", err
	}

	return rev.ID, nil
}

func (s *Store) appendLine(rev Revision) error {
	if err := os.MkdirAll(s.branchRoot, 0o755); err != nil {
		return gikerrors.Wrap(gikerrors.KindTimelineWrite, err)
	}

	f, err := os.OpenFile(s.timelinePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindTimelineWrite, err)
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(rev)
	if err != nil {
		return gikerrors.Wrap(gikerrors.KindTimelineWrite, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return gikerrors.Wrap(gikerrors.KindTimelineWrite, err)
	}
	return f.Sync()
}

// ReadTimeline returns every revision recorded for the branch, in
// append order.
func (s *Store) ReadTimeline() ([]Revision, error) {
	f, err := os.Open(s.timelinePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gikerrors.Wrap(gikerrors.KindTimelineRead, err)
	}
	defer func() { _ = f.Close() }()

	var revisions []Revision
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rev Revision
		if err := json.Unmarshal([]byte(line), &rev); err != nil {
			return nil, gikerrors.Wrap(gikerrors.KindTimelineParse, err)
		}
		revisions = append(revisions, rev)
	}
	if err := scanner.Err(); err != nil {
		return nil, gikerrors.Wrap(gikerrors.KindTimelineRead, err)
	}

	return revisions, nil
}

// GetRevision returns the revision with the given exact id.
func (s *Store) GetRevision(id string) (*Revision, error) {
	revisions, err := s.ReadTimeline()
	if err != nil {
		return nil, err
	}
	for i := range revisions {
		if revisions[i].ID == id {
			return &revisions[i], nil
		}
	}
	return nil, gikerrors.RevisionNotFound(id)
}

// ResolveRef resolves a ref string to a revision id. Accepted forms:
//
//	"HEAD"      the branch's current head
//	"HEAD~N"    the Nth ancestor of head (N >= 0)
//	<prefix>    a unique prefix of a revision id
//
// An ambiguous prefix (matching more than one revision) fails.
func (s *Store) ResolveRef(ref string) (string, error) {
	revisions, err := s.ReadTimeline()
	if err != nil {
		return "", err
	}

	head, err := s.ReadHead()
	if err != nil {
		return "", err
	}

	byID := make(map[string]*Revision, len(revisions))
	for i := range revisions {
		byID[revisions[i].ID] = &revisions[i]
	}

	if ref == "HEAD" {
		if head == "" {
			return "", gikerrors.New(gikerrors.KindRevisionNotFound, "branch has no revisions", nil)
		}
		return head, nil
	}

	if strings.HasPrefix(ref, "HEAD~") {
		n, parseErr := strconv.Atoi(strings.TrimPrefix(ref, "HEAD~"))
		if parseErr != nil || n < 0 {
			return "", gikerrors.New(gikerrors.KindInvalidArgument,
				fmt.Sprintf("invalid ref %q", ref), nil)
		}

		cur := head
		for i := 0; i < n; i++ {
			if cur == "" {
				return "", gikerrors.RevisionNotFound(ref)
			}
			rev, ok := byID[cur]
			if !ok || rev.ParentID == nil {
				return "", gikerrors.RevisionNotFound(ref)
			}
			cur = *rev.ParentID
		}
		if cur == "" {
			return "", gikerrors.RevisionNotFound(ref)
		}
		return cur, nil
	}

	var matches []string
	for _, rev := range revisions {
		if strings.HasPrefix(rev.ID, ref) {
			matches = append(matches, rev.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", gikerrors.RevisionNotFound(ref)
	case 1:
		return matches[0], nil
	default:
		return "", gikerrors.New(gikerrors.KindInvalidArgument,
			fmt.Sprintf("ref %q is an ambiguous prefix matching %d revisions", ref, len(matches)), nil)
	}
}
