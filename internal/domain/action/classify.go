package action

import (
	"path/filepath"
	"strings"
)

// TargetClass partitions targets by the consequence of damaging them.
type TargetClass string

const (
	TargetProduction TargetClass = "production"
	TargetDisposable TargetClass = "disposable"
)

// Classifier decides whether a target is production-classified.
// Disposable patterns win over production patterns so scratch areas inside
// a production tree stay disposable.
type Classifier struct {
	production []string
	disposable []string
}

// NewClassifier creates a Classifier from glob pattern lists.
func NewClassifier(production, disposable []string) *Classifier {
	return &Classifier{production: production, disposable: disposable}
}

// Classify returns the class for a target identifier.
// Targets matching no pattern default to production: misclassifying a
// production target as disposable is the expensive mistake.
func (c *Classifier) Classify(target string) TargetClass {
	for _, pattern := range c.disposable {
		if MatchGlob(pattern, target) {
			return TargetDisposable
		}
	}
	for _, pattern := range c.production {
		if MatchGlob(pattern, target) {
			return TargetProduction
		}
	}
	return TargetProduction
}

// MatchGlob matches a string against a glob pattern. Supports:
// - Standard filepath.Match patterns (*, ?)
// - ** for recursive directory matching
func MatchGlob(pattern, value string) bool {
	if strings.Contains(pattern, "**") {
		return matchSegments(strings.Split(pattern, "/"), strings.Split(value, "/"))
	}
	matched, _ := filepath.Match(pattern, value)
	return matched
}

// matchSegments recursively matches pattern segments against value segments.
func matchSegments(pat, val []string) bool {
	for len(pat) > 0 && len(val) > 0 {
		if pat[0] == "**" {
			pat = pat[1:]
			if len(pat) == 0 {
				return true // trailing ** matches everything
			}
			for i := 0; i <= len(val); i++ {
				if matchSegments(pat, val[i:]) {
					return true
				}
			}
			return false
		}
		matched, _ := filepath.Match(pat[0], val[0])
		if !matched {
			return false
		}
		pat = pat[1:]
		val = val[1:]
	}
	for _, p := range pat {
		if p != "**" {
			return false
		}
	}
	return len(val) == 0
}
