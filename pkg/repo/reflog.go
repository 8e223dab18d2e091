package repo

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vctrl/vctrl/pkg/object"
)

// zeroOid stands in for "no previous value" in reflog lines.
var zeroOid = object.Oid(strings.Repeat("0", object.OidLength))

// ReflogEntry is one recorded movement of a ref.
type ReflogEntry struct {
	Ref       string
	Old       object.Oid
	New       object.Oid
	Timestamp int64
	Reason    string
}

// appendReflog records "old new unix reason" under .vctrl/logs/<ref>.
func (r *Repo) appendReflog(ref string, old, newOid object.Oid, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	if old == "" {
		old = zeroOid
	}
	if newOid == "" {
		newOid = zeroOid
	}

	logPath := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %d %s\n", old, newOid, r.now().Unix(), oneLine(reason))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// ReadReflog returns the recorded movements of ref, newest first. An empty
// ref or "HEAD" means the branch HEAD points at (or HEAD itself when
// detached). limit <= 0 returns every entry.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	name := r.reflogRefName(ref)
	f, err := os.Open(r.reflogPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:       name,
			Old:       object.Oid(parts[0]),
			New:       object.Oid(parts[1]),
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *Repo) reflogPath(qualified string) string {
	return filepath.Join(r.VctrlDir, "logs", filepath.FromSlash(qualified))
}

func (r *Repo) reflogRefName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == HeadRef {
		if target, symbolic, err := r.Head(); err == nil && symbolic {
			return target
		}
		return HeadRef
	}
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return headsPrefix + ref
}

func oneLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
