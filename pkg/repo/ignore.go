package repo

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFileName is the per-repository ignore file at the working root.
const IgnoreFileName = ".vctrlignore"

// defaultIgnores are always applied before .vctrlignore, so a later
// "!pattern" line can re-include any of them except the metadata dir.
var defaultIgnores = []string{
	".git",
	"__pycache__/",
	"build/",
	"dist/",
	"venv/",
}

// IgnoreChecker decides which working-tree paths are skipped by tree
// building, staging and diff.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	hasSlash bool // match against the full relative path
	regex    *regexp.Regexp
}

// NewIgnoreChecker loads the default rules and, if present,
// <root>/.vctrlignore. A missing or unreadable ignore file just means
// defaults only.
func NewIgnoreChecker(root string) *IgnoreChecker {
	ic := &IgnoreChecker{}
	for _, line := range defaultIgnores {
		ic.patterns = append(ic.patterns, *parseIgnoreLine(line))
	}

	f, err := os.Open(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return ic
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseIgnoreLine(scanner.Text()); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	return ic
}

// parseIgnoreLine returns nil for blank lines and comments.
func parseIgnoreLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return nil
	}
	p.hasSlash = anchored || strings.Contains(line, "/")
	p.pattern = line
	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			p.regex = re
		}
	}
	return p
}

// IsIgnored reports whether rel (slash-separated, relative to the working
// root) is skipped. A path inside an ignored directory is always ignored.
// The metadata directory can never be re-included.
func (ic *IgnoreChecker) IsIgnored(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" {
		return false
	}
	parts := strings.Split(rel, "/")
	if parts[0] == MetaDirName {
		return true
	}
	for i := 1; i <= len(parts); i++ {
		candidate := strings.Join(parts[:i], "/")
		candDir := i < len(parts) || isDir
		ignored := ic.evaluate(candidate, parts[i-1], candDir)
		if ignored || i == len(parts) {
			return ignored
		}
	}
	return false
}

// evaluate applies every pattern to one candidate; the last match wins.
func (ic *IgnoreChecker) evaluate(full, base string, isDir bool) bool {
	ignored := false
	for i := range ic.patterns {
		p := &ic.patterns[i]
		if p.dirOnly && !isDir {
			continue
		}
		target := base
		if p.hasSlash {
			target = full
		}
		if p.match(target) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p *ignorePattern) match(target string) bool {
	if p.regex != nil {
		return p.regex.MatchString(target)
	}
	matched, _ := path.Match(p.pattern, target)
	return matched
}

// globToRegex translates a glob with "**" segments into an anchored
// regular expression. "**/" matches zero or more directories.
func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			if i+2 < len(pattern) && pattern[i+2] == '/' {
				b.WriteString("(?:.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			if strings.ContainsRune(`.+()|[]{}^$\`, rune(ch)) {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
	}
	b.WriteString("$")
	return b.String()
}
