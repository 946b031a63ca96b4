// Package dbref parses the database reference grammar
// source/dataset[@version][:profile] used to address a specific
// manifest version (or its current alias) from the CLI and API.
package dbref

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

// Ref is a parsed database reference.
type Ref struct {
	Source  string
	Dataset string
	Version string // literal version id or alias; empty means "current"
	Profile string // empty means no derived reduction view
}

var versionTimestamp = regexp.MustCompile(`^\d{8}_\d{6}$`)
var aliasName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Parse parses a reference string of the form
// "source/dataset[@version][:profile]".
func Parse(s string) (*Ref, error) {
	rest := s
	profile := ""
	if i := strings.Index(rest, ":"); i >= 0 {
		profile = rest[i+1:]
		rest = rest[:i]
	}

	version := ""
	if i := strings.Index(rest, "@"); i >= 0 {
		version = rest[i+1:]
		rest = rest[:i]
	}

	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, talariaerrors.InvalidReferenceError(
			fmt.Sprintf("malformed database reference %q: expected source/dataset[@version][:profile]", s), nil)
	}
	source, dataset := parts[0], parts[1]

	if version != "" && !versionTimestamp.MatchString(version) && !aliasName.MatchString(version) {
		return nil, talariaerrors.InvalidReferenceError(
			fmt.Sprintf("malformed version %q in reference %q", version, s), nil)
	}

	return &Ref{Source: source, Dataset: dataset, Version: version, Profile: profile}, nil
}

// String renders a Ref back to its canonical grammar form.
func (r *Ref) String() string {
	var b strings.Builder
	b.WriteString(r.Source)
	b.WriteByte('/')
	b.WriteString(r.Dataset)
	if r.Version != "" {
		b.WriteByte('@')
		b.WriteString(r.Version)
	}
	if r.Profile != "" {
		b.WriteByte(':')
		b.WriteString(r.Profile)
	}
	return b.String()
}

// ResolveKnown validates source/dataset against known names, returning
// an InvalidReference error carrying a suggestions list of the closest
// known "source/dataset" pairs when the reference names an unknown
// combination.
func ResolveKnown(r *Ref, known []string) error {
	full := r.Source + "/" + r.Dataset
	for _, k := range known {
		if k == full {
			return nil
		}
	}

	suggestions := closest(full, known, 3)
	err := talariaerrors.InvalidReferenceError(
		fmt.Sprintf("unknown database reference %q", full), nil)
	if len(suggestions) > 0 {
		err = err.WithSuggestion(fmt.Sprintf("did you mean one of: %s?", strings.Join(suggestions, ", ")))
	}
	return err
}

// closest returns up to limit entries from candidates ordered by
// ascending Levenshtein distance to target.
func closest(target string, candidates []string, limit int) []string {
	type scored struct {
		name string
		dist int
	}
	scoredList := make([]scored, len(candidates))
	for i, c := range candidates {
		scoredList[i] = scored{name: c, dist: levenshtein(target, c)}
	}
	sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].dist < scoredList[j].dist })

	if limit > len(scoredList) {
		limit = len(scoredList)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = scoredList[i].name
	}
	return out
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
