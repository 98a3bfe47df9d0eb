package filesystem

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFiles are read from the repository root, in order.
var IgnoreFiles = []string{".gitignore", ".agentsmdignore"}

// DefaultIgnoredDirs are build, dependency and cache directories skipped
// wherever they appear. A negated rule in an ignore file re-includes one.
var DefaultIgnoredDirs = []string{
	"node_modules", "__pycache__", "venv", "env", "dist", "build",
	"target", "vendor", "bin", "obj", "out", "coverage", "logs",
	"tmp", "temp", "packages", "pkg",
}

type ignoreRule struct {
	re       *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
	hasSlash bool
}

// IgnoreMatcher applies gitignore-style rules. The last matching rule wins.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher builds a matcher from rule lines, after the default
// directory rules.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, dir := range DefaultIgnoredDirs {
		m.add(dir + "/")
	}
	for _, line := range lines {
		m.add(line)
	}
	return m
}

// LoadIgnoreMatcher reads IgnoreFiles from root. Missing files are skipped.
func LoadIgnoreMatcher(root string) (*IgnoreMatcher, error) {
	var lines []string
	for _, name := range IgnoreFiles {
		f, err := os.Open(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return NewIgnoreMatcher(lines), nil
}

func (m *IgnoreMatcher) add(line string) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var r ignoreRule
	if strings.HasPrefix(line, "!") {
		r.negated = true
		line = line[1:]
	}
	line = strings.TrimPrefix(line, `\`)
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if line == "" {
		return
	}
	r.hasSlash = strings.Contains(line, "/")

	re, err := regexp.Compile("^" + globToRegex(line) + "$")
	if err != nil {
		return
	}
	r.re = re
	m.rules = append(m.rules, r)
}

// Ignored reports whether relPath (slash-separated, relative to the root)
// is excluded. Callers walking a tree check directories before descending,
// so a file inside an ignored directory is never asked about.
func (m *IgnoreMatcher) Ignored(relPath string, isDir bool) bool {
	relPath = strings.TrimPrefix(filepath.ToSlash(relPath), "./")
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.matches(relPath) {
			ignored = !r.negated
		}
	}
	return ignored
}

// IgnoredPath reports whether a file or any of its parent directories is
// ignored. Used where no directory walk prunes ignored trees.
func (m *IgnoreMatcher) IgnoredPath(relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		if m.Ignored(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return m.Ignored(relPath, false)
}

func (r ignoreRule) matches(relPath string) bool {
	// Patterns with a slash are relative to the root, like gitignore.
	if r.anchored || r.hasSlash {
		return r.re.MatchString(relPath)
	}
	return r.re.MatchString(path.Base(relPath))
}

func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch ch {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
				// "**/" matches zero or more directories.
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					i++
					b.WriteString("(.*/)?")
					continue
				}
				b.WriteString(".*")
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			if j := strings.IndexByte(pattern[i:], ']'); j > 1 {
				class := pattern[i+1 : i+j]
				if strings.HasPrefix(class, "!") {
					class = "^" + class[1:]
				}
				b.WriteString("[" + class + "]")
				i += j
				continue
			}
			b.WriteString(`\[`)
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	return b.String()
}
