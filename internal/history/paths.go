package history

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/miuzhaii/replygate/internal/pathutil"
)

// ResolveWorkspaceRootPath resolves the configured workspace root path.
// If empty, it falls back to ~/.replygate/workspaces.
func ResolveWorkspaceRootPath(workspaceRootPath string) (string, error) {
	if trimmed := strings.TrimSpace(workspaceRootPath); trimmed != "" {
		return pathutil.Expand(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".replygate", "workspaces"), nil
}

// GetWorkspacePath returns the base path for a workspace.
func GetWorkspacePath(workspaceID string, workspaceRootPath string) (string, error) {
	root, err := ResolveWorkspaceRootPath(workspaceRootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, workspaceID), nil
}

// GetConversationsDir returns the conversations directory for a workspace.
func GetConversationsDir(workspaceID string, workspaceRootPath string) (string, error) {
	base, err := GetWorkspacePath(workspaceID, workspaceRootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "conversations"), nil
}

// GetLockPath returns the lock file path for a workspace.
func GetLockPath(workspaceID string, workspaceRootPath string) (string, error) {
	base, err := GetWorkspacePath(workspaceID, workspaceRootPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "workspace.lock"), nil
}
