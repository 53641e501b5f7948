// Package states finds the U.S. states an article is about.
package states

import (
	"fmt"
	"strings"

	"ndta-news/pipeline/internal/models"
)

// State is one of the fifty states.
type State struct {
	Abbr string
	Name string
}

// All lists the states in detection order.
var All = []State{
	{"AL", "Alabama"}, {"AK", "Alaska"}, {"AZ", "Arizona"}, {"AR", "Arkansas"},
	{"CA", "California"}, {"CO", "Colorado"}, {"CT", "Connecticut"}, {"DE", "Delaware"},
	{"FL", "Florida"}, {"GA", "Georgia"}, {"HI", "Hawaii"}, {"ID", "Idaho"},
	{"IL", "Illinois"}, {"IN", "Indiana"}, {"IA", "Iowa"}, {"KS", "Kansas"},
	{"KY", "Kentucky"}, {"LA", "Louisiana"}, {"ME", "Maine"}, {"MD", "Maryland"},
	{"MA", "Massachusetts"}, {"MI", "Michigan"}, {"MN", "Minnesota"}, {"MS", "Mississippi"},
	{"MO", "Missouri"}, {"MT", "Montana"}, {"NE", "Nebraska"}, {"NV", "Nevada"},
	{"NH", "New Hampshire"}, {"NJ", "New Jersey"}, {"NM", "New Mexico"}, {"NY", "New York"},
	{"NC", "North Carolina"}, {"ND", "North Dakota"}, {"OH", "Ohio"}, {"OK", "Oklahoma"},
	{"OR", "Oregon"}, {"PA", "Pennsylvania"}, {"RI", "Rhode Island"}, {"SC", "South Carolina"},
	{"SD", "South Dakota"}, {"TN", "Tennessee"}, {"TX", "Texas"}, {"UT", "Utah"},
	{"VT", "Vermont"}, {"VA", "Virginia"}, {"WA", "Washington"}, {"WV", "West Virginia"},
	{"WI", "Wisconsin"}, {"WY", "Wyoming"},
}

// Name returns the full name of a state code.
func Name(abbr string) (string, bool) {
	abbr = strings.ToUpper(abbr)
	for _, s := range All {
		if s.Abbr == abbr {
			return s.Name, true
		}
	}
	return "", false
}

// DefaultGroups are the Facebook groups suggested for state news.
var DefaultGroups = map[string][]string{
	"GA": {"Georgia Dump Truck Operators", "GA Heavy Equipment Network"},
	"TX": {"Texas Dump Truck Association", "TX Trucking Professionals"},
	"CA": {"California Dump Truck Owners", "CA Heavy Haulers"},
	"FL": {"Florida Dump Truck Network", "FL Construction Trucking"},
}

// Policy controls when a bare two-letter code counts as a mention.
type Policy string

const (
	// AbbrevAll matches every code.
	AbbrevAll Policy = "all"
	// AbbrevUnambiguous skips codes that are also common words or
	// abbreviations ("in", "or", "me", "co", "pa"...).
	AbbrevUnambiguous Policy = "unambiguous"
	// AbbrevNone matches full names only.
	AbbrevNone Policy = "none"
)

// ambiguous are the codes AbbrevUnambiguous ignores.
var ambiguous = []string{"AL", "CO", "DE", "HI", "ID", "IN", "LA", "MA", "ME", "MO", "OH", "OK", "OR", "PA"}

// ParsePolicy validates a configured policy. Empty means AbbrevUnambiguous.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AbbrevUnambiguous, nil
	case AbbrevAll, AbbrevUnambiguous, AbbrevNone:
		return p, nil
	default:
		return "", fmt.Errorf("unknown abbreviation policy %q", s)
	}
}

const matchConfidence = 0.8

// Result is the outcome of one detection.
type Result struct {
	IsStateSpecific bool
	States          []models.DetectedState
	Confidence      float64
}

// Detector matches state names and codes in article text.
type Detector struct {
	policy  Policy
	exclude map[string]bool
	groups  map[string][]string
}

// NewDetector builds a detector. exclude adds codes that are never matched
// as abbreviations; groups overrides DefaultGroups when non-nil.
func NewDetector(policy Policy, exclude []string, groups map[string][]string) *Detector {
	if policy == "" {
		policy = AbbrevUnambiguous
	}
	d := &Detector{policy: policy, exclude: make(map[string]bool), groups: groups}
	if d.groups == nil {
		d.groups = DefaultGroups
	}
	if policy == AbbrevUnambiguous {
		for _, a := range ambiguous {
			d.exclude[a] = true
		}
	}
	for _, a := range exclude {
		d.exclude[strings.ToUpper(strings.TrimSpace(a))] = true
	}
	return d
}

// Detect scans title and summary. States are returned in All order.
func (d *Detector) Detect(title, summary string) Result {
	text := " " + strings.ToLower(title+" "+summary) + " "

	var found []models.DetectedState
	for _, s := range All {
		if containsWord(text, strings.ToLower(s.Name)) || d.matchAbbr(text, s.Abbr) {
			found = append(found, models.DetectedState{
				Abbr:            s.Abbr,
				Name:            s.Name,
				SuggestedGroups: d.Groups(s.Abbr),
			})
		}
	}
	if len(found) == 0 {
		return Result{}
	}
	return Result{IsStateSpecific: true, States: found, Confidence: matchConfidence}
}

// Apply runs Detect on a and stores the outcome on it.
func (d *Detector) Apply(a *models.Article) {
	res := d.Detect(a.Title, a.Summary)
	a.IsStateSpecific = res.IsStateSpecific
	a.DetectedStates = res.States
	a.StateConfidence = res.Confidence
}

// Groups returns the suggested Facebook groups of a state code.
func (d *Detector) Groups(abbr string) []string {
	return d.groups[strings.ToUpper(abbr)]
}

func (d *Detector) matchAbbr(text, abbr string) bool {
	if d.policy == AbbrevNone || d.exclude[abbr] {
		return false
	}
	return strings.Contains(text, " "+strings.ToLower(abbr)+" ")
}

// containsWord reports whether name occurs in text with no letter directly
// before or after it, so "kansas" does not match inside "arkansas".
func containsWord(text, name string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], name)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(name)
		if !isLetter(text[start-1]) && (end >= len(text) || !isLetter(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}
