package services

import (
	_ "embed"

	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
)

//go:embed denylist_default.txt
var defaultTerms string

// Denylist is a case-insensitive exact-match set of blocked terms.
// The zero value blocks nothing.
type Denylist struct {
	terms map[string]struct{}
}

// NewDenylist builds a Denylist from terms. Blank entries are ignored.
func NewDenylist(terms ...string) *Denylist {
	d := &Denylist{terms: make(map[string]struct{}, len(terms))}
	for _, t := range terms {
		d.add(t)
	}
	return d
}

// DefaultDenylist returns the built-in list of blocked usernames.
func DefaultDenylist() *Denylist {
	d := NewDenylist()
	// The embedded list is compiled in; a read error cannot happen.
	_ = d.read(strings.NewReader(defaultTerms))
	return d
}

// LoadDenylist builds the effective denylist: the built-in terms, then terms,
// then, when path is non-empty, the file at path (one term per line, blank
// lines and lines starting with '#' skipped).
func LoadDenylist(path string, terms ...string) (*Denylist, error) {
	d := DefaultDenylist()
	for _, t := range terms {
		d.add(t)
	}
	if path == "" {
		return d, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open denylist: %w", err)
	}
	defer f.Close()

	if err := d.read(f); err != nil {
		return nil, fmt.Errorf("read denylist: %w", err)
	}
	return d, nil
}

func (d *Denylist) read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.add(line)
	}
	return sc.Err()
}

// Contains reports whether term is blocked.
func (d *Denylist) Contains(term string) bool {
	if d == nil || len(d.terms) == 0 {
		return false
	}
	_, ok := d.terms[fold(term)]
	return ok
}

// Len returns the number of distinct blocked terms.
func (d *Denylist) Len() int {
	if d == nil {
		return 0
	}
	return len(d.terms)
}

func (d *Denylist) add(t string) {
	if t = strings.TrimSpace(t); t != "" {
		d.terms[fold(t)] = struct{}{}
	}
}

// fold applies Unicode case folding. A fresh Caser is used per call because
// Casers are not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}
