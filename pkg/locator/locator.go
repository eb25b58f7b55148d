// Package locator finds controls on an unstable UI.
//
// Every logical control is described by a Target: a ranked list of independent
// candidates, most specific first. The Resolver tries each candidate in turn,
// retrying the same candidate when the element it found goes stale, and reports
// a definitive not-found only after every candidate is exhausted. It never
// decides what a missing control means; callers do.
package locator

import (
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
)

// Requirement is how usable a located element must be.
type Requirement string

const (
	// RequirePresent accepts any attached element.
	RequirePresent Requirement = "present"
	// RequireVisible accepts visible elements.
	RequireVisible Requirement = "visible"
	// RequireInteractable accepts visible, enabled elements.
	RequireInteractable Requirement = "interactable"
)

// Candidate is one way of finding a control.
type Candidate struct {
	Strategy browser.Strategy `yaml:"strategy" json:"strategy"`
	Query    string           `yaml:"query" json:"query"`
	Label    string           `yaml:"label,omitempty" json:"label,omitempty"`
}

// Selector returns the candidate's selector.
func (c Candidate) Selector() browser.Selector {
	return browser.Selector{Strategy: c.Strategy, Query: c.Query}
}

// String implements fmt.Stringer.
func (c Candidate) String() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Selector().String()
}

// CSS builds a CSS candidate.
func CSS(query, label string) Candidate {
	return Candidate{Strategy: browser.StrategyCSS, Query: query, Label: label}
}

// XPath builds an XPath candidate.
func XPath(query, label string) Candidate {
	return Candidate{Strategy: browser.StrategyXPath, Query: query, Label: label}
}

// Text builds a visible-text candidate.
func Text(query, label string) Candidate {
	return Candidate{Strategy: browser.StrategyText, Query: query, Label: label}
}

// ID builds an element-id candidate.
func ID(query, label string) Candidate {
	return Candidate{Strategy: browser.StrategyID, Query: query, Label: label}
}

// Target is a logical control and the ranked ways of finding it.
type Target struct {
	Name       string        `yaml:"name" json:"name"`
	Candidates []Candidate   `yaml:"candidates" json:"candidates"`
	Require    Requirement   `yaml:"require,omitempty" json:"require,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// NewTarget builds a target that must be interactable.
func NewTarget(name string, candidates ...Candidate) Target {
	return Target{Name: name, Candidates: candidates, Require: RequireInteractable}
}

// With substitutes args into every candidate query with fmt verbs, for
// controls addressed by row number or year.
func (t Target) With(args ...any) Target {
	out := t
	out.Name = fmt.Sprintf("%s%v", t.Name, args)
	out.Candidates = make([]Candidate, len(t.Candidates))
	for i, c := range t.Candidates {
		if strings.Contains(c.Query, "%") {
			c.Query = fmt.Sprintf(c.Query, args...)
		}
		out.Candidates[i] = c
	}
	return out
}

// Within returns a copy of t with a different per-candidate timeout.
func (t Target) Within(timeout time.Duration) Target {
	out := t
	out.Timeout = timeout
	return out
}

// Requiring returns a copy of t with a different requirement.
func (t Target) Requiring(req Requirement) Target {
	out := t
	out.Require = req
	return out
}

func (t Target) state() browser.State {
	if t.Require == RequirePresent {
		return browser.StateAttached
	}
	return browser.StateVisible
}

// NotFoundError reports that no candidate of a target produced a usable element.
type NotFoundError struct {
	Target string
	Tried  int

	// Last is the last transient failure seen, if any.
	Last error
}

func (e *NotFoundError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s not found after %d candidates: %v", e.Target, e.Tried, e.Last)
	}
	return fmt.Sprintf("%s not found after %d candidates", e.Target, e.Tried)
}

// Unwrap makes errors.Is(err, browser.ErrNotFound) hold.
func (e *NotFoundError) Unwrap() error {
	return browser.ErrNotFound
}

// Catalog maps control names to targets.
type Catalog map[string]Target

// Get returns the named target. A missing name yields a target without
// candidates, which the resolver rejects.
func (c Catalog) Get(name string) Target {
	if t, ok := c[name]; ok {
		if t.Name == "" {
			t.Name = name
		}
		return t
	}
	return Target{Name: name}
}

// Merge returns a new catalog with other's entries replacing c's.
func (c Catalog) Merge(other Catalog) Catalog {
	out := make(Catalog, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		if v.Name == "" {
			v.Name = k
		}
		if v.Require == "" {
			if base, ok := c[k]; ok {
				v.Require = base.Require
			}
		}
		out[k] = v
	}
	return out
}
