package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info holds metadata for retention decisions.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// RetentionPolicy decides which backups to keep.
type RetentionPolicy interface {
	Apply(backups []Info) (keep []Info)
}

// CountPolicy keeps the N most recent backups.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount backups (assumed sorted newest-first).
func (p *CountPolicy) Apply(backups []Info) []Info {
	if len(backups) <= p.MaxCount {
		return backups
	}
	return backups[:p.MaxCount]
}

// AgePolicy keeps backups newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration

	now func() time.Time
}

// Apply keeps backups whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(backups []Info) []Info {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Info
	for _, b := range backups {
		if b.CreatedAt.After(cutoff) {
			keep = append(keep, b)
		}
	}
	return keep
}

// CompositePolicy keeps a backup if ANY sub-policy wants it (union).
type CompositePolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the union of backups kept by any sub-policy.
func (p *CompositePolicy) Apply(backups []Info) []Info {
	kept := make(map[string]bool)
	for _, policy := range p.Policies {
		for _, b := range policy.Apply(backups) {
			kept[b.Path] = true
		}
	}

	var result []Info
	for _, b := range backups {
		if kept[b.Path] {
			result = append(result, b)
		}
	}
	return result
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}

// List scans dir for axelrod-backup-* files and returns them sorted newest-first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		backups = append(backups, Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	// Sort newest first by filename (timestamp is embedded)
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})

	return backups, nil
}

// ApplyRetention deletes backups not kept by the policy.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	backups, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := policy.Apply(backups)
	keepSet := make(map[string]bool, len(keep))
	for _, b := range keep {
		keepSet[b.Path] = true
	}

	for _, b := range backups {
		if !keepSet[b.Path] {
			if err := os.Remove(b.Path); err != nil {
				return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
			}
			deleted = append(deleted, b.Path)
		}
	}

	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	// Try standard Go duration first (e.g., "720h")
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	// Parse custom suffixes: d (days), w (weeks)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}
