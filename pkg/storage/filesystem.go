package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// FileSystemRepository implements workspace.Repository with one JSON file
// per record:
//
//	{root}/{workspace_id}/workspace.json
//	{root}/{workspace_id}/members/{member_id}.json
//	{root}/{workspace_id}/invites/{invite_id}.json
type FileSystemRepository struct {
	rootDir string
	mu      sync.RWMutex
}

// NewFileSystemRepository creates the root directory when missing
func NewFileSystemRepository(rootDir string) (*FileSystemRepository, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemRepository{rootDir: rootDir}, nil
}

// UpsertWorkspace implements workspace.Repository
func (s *FileSystemRepository) UpsertWorkspace(ctx context.Context, rec workspace.WorkspaceRecord) error {
	path, err := s.path(rec.Workspace.ID, "workspace.json")
	if err != nil {
		return err
	}
	var cur workspace.WorkspaceRecord
	return s.write(ctx, path, rec, &cur, func() bool { return cur.Workspace.Revision > rec.Workspace.Revision })
}

// UpsertMember implements workspace.Repository
func (s *FileSystemRepository) UpsertMember(ctx context.Context, rec workspace.MemberRecord) error {
	path, err := s.path(rec.Member.WorkspaceID, "members", rec.Member.ID+".json")
	if err != nil {
		return err
	}
	var cur workspace.MemberRecord
	return s.write(ctx, path, rec, &cur, func() bool { return cur.Member.Revision > rec.Member.Revision })
}

// UpsertInvite implements workspace.Repository
func (s *FileSystemRepository) UpsertInvite(ctx context.Context, rec workspace.InviteRecord) error {
	path, err := s.path(rec.Invite.WorkspaceID, "invites", rec.Invite.ID+".json")
	if err != nil {
		return err
	}
	var cur workspace.InviteRecord
	return s.write(ctx, path, rec, &cur, func() bool { return cur.Invite.Revision > rec.Invite.Revision })
}

// ListWorkspaces implements workspace.Repository
func (s *FileSystemRepository) ListWorkspaces(ctx context.Context, userID string) ([]workspace.WorkspaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	var out []workspace.WorkspaceRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		members, err := s.members(entry.Name())
		if err != nil {
			return nil, err
		}
		if !holds(members, userID) {
			continue
		}

		var rec workspace.WorkspaceRecord
		found, err := readJSON(filepath.Join(s.rootDir, entry.Name(), "workspace.json"), &rec)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListMembers implements workspace.Repository
func (s *FileSystemRepository) ListMembers(ctx context.Context, userID, workspaceID string) ([]workspace.MemberRecord, error) {
	if _, err := s.path(workspaceID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, err := s.members(workspaceID)
	if err != nil || !holds(members, userID) {
		return nil, err
	}
	return members, nil
}

// ListInvites implements workspace.Repository
func (s *FileSystemRepository) ListInvites(ctx context.Context, userID, workspaceID string) ([]workspace.InviteRecord, error) {
	if _, err := s.path(workspaceID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, err := s.members(workspaceID)
	if err != nil || !holds(members, userID) {
		return nil, err
	}

	var out []workspace.InviteRecord
	err = readDir(filepath.Join(s.rootDir, workspaceID, "invites"), func(path string) error {
		var rec workspace.InviteRecord
		if _, err := readJSON(path, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *FileSystemRepository) members(workspaceID string) ([]workspace.MemberRecord, error) {
	var out []workspace.MemberRecord
	err := readDir(filepath.Join(s.rootDir, workspaceID, "members"), func(path string) error {
		var rec workspace.MemberRecord
		if _, err := readJSON(path, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func holds(members []workspace.MemberRecord, userID string) bool {
	for _, m := range members {
		if m.Member.UserID == userID {
			return true
		}
	}
	return false
}

// path joins elements under the root, rejecting ids that would escape it
func (s *FileSystemRepository) path(elems ...string) (string, error) {
	for _, e := range elems {
		if e == "" || e == "." || e == ".." || strings.ContainsAny(e, `/\`) {
			return "", fmt.Errorf("invalid record path element %q", e)
		}
	}
	return filepath.Join(append([]string{s.rootDir}, elems...)...), nil
}

// write stores rec at path unless stale reports the current file is newer
func (s *FileSystemRepository) write(ctx context.Context, path string, rec interface{}, cur interface{}, stale func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := readJSON(path, cur)
	if err != nil {
		return err
	}
	if found && stale() {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace record file: %w", err)
	}
	return nil
}

func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to read record file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// readDir calls fn for every .json file in dir in name order. A missing
// directory has no files.
func readDir(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := fn(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
