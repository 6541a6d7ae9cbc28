package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	allowedDir := t.TempDir()
	otherDir := t.TempDir()

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		errContains string
	}{
		{"inside allowed dir", filepath.Join(allowedDir, "axelrod-backup.json.gz"), []string{allowedDir}, ""},
		{"missing subdirectory", filepath.Join(allowedDir, "a", "b", "backup.json.gz"), []string{allowedDir}, ""},
		{"exactly the allowed dir", allowedDir, []string{allowedDir}, ""},
		{"second allowed dir", filepath.Join(otherDir, "x"), []string{allowedDir, otherDir}, ""},
		{"redundant separators", allowedDir + "//backup.json.gz", []string{allowedDir}, ""},
		{"dot-dot traversal", filepath.Join(allowedDir, "..", "etc", "passwd"), []string{allowedDir}, "outside allowed directories"},
		{"outside", filepath.Join(otherDir, "backup.json.gz"), []string{allowedDir}, "outside allowed directories"},
		{"prefix sibling", allowedDir + "extra/backup.json.gz", []string{allowedDir}, "outside allowed directories"},
		{"null byte", filepath.Join(allowedDir, "back\x00up"), []string{allowedDir}, "null byte"},
		{"empty path", "", []string{allowedDir}, "empty"},
		{"no allowed dirs", filepath.Join(allowedDir, "x"), nil, "no allowed directories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowedDirs)
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("ValidatePath() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidatePath() error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidatePath_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}
	allowedDir := t.TempDir()
	outsideDir := t.TempDir()

	escape := filepath.Join(allowedDir, "escape")
	if err := os.Symlink(outsideDir, escape); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	if err := ValidatePath(filepath.Join(escape, "backup.json.gz"), []string{allowedDir}); err == nil {
		t.Error("symlink escaping the allowed dir was accepted")
	}

	inner := filepath.Join(allowedDir, "inner")
	if err := os.Mkdir(inner, 0700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	link := filepath.Join(allowedDir, "link")
	if err := os.Symlink(inner, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	if err := ValidatePath(filepath.Join(link, "backup.json.gz"), []string{allowedDir}); err != nil {
		t.Errorf("symlink inside the allowed dir rejected: %v", err)
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/home/user/.axelrod/results.db", ".../.axelrod/results.db"},
		{"/a/b/c/d/e.txt", ".../d/e.txt"},
		{"/file.txt", "file.txt"},
		{"dir/file.txt", ".../dir/file.txt"},
		{"file.txt", "file.txt"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.input); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAllowedBackupDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dirs, err := AllowedBackupDirs("", "/srv/archive")
	if err != nil {
		t.Fatalf("AllowedBackupDirs() error = %v", err)
	}
	want := []string{filepath.Join(home, ".axelrod", "backups"), "/srv/archive"}
	if len(dirs) != len(want) {
		t.Fatalf("AllowedBackupDirs() = %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %s, want %s", i, dirs[i], want[i])
		}
	}
}
