package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Carrier is a supported insurance carrier id.
type Carrier string

const (
	Oscar       Carrier = "oscar"
	Molina      Carrier = "molina"
	Aetna       Carrier = "aetna"
	Cigna       Carrier = "cigna"
	Healthfirst Carrier = "healthfirst"
	AvMed       Carrier = "avmed"
	Blue        Carrier = "blue"
)

// AllCarriers is the supported vocabulary in display order.
var AllCarriers = []Carrier{Oscar, Molina, Aetna, Cigna, Healthfirst, AvMed, Blue}

type carrierVariants struct {
	carrier Carrier

	// display are the names the results filter shows, tried in order.
	display []string

	// patterns match lowercased carrier names found on offer pages.
	patterns []glob.Glob
}

var carrierTable = []carrierVariants{
	variants(Blue, []string{"Blue Cross and Blue Shield of Texas", "Blue Cross", "BCBS"},
		"*blue cross*", "*blue shield*", "*bcbs*", "blue*"),
	variants(Oscar, []string{"Oscar"}, "*oscar*"),
	variants(Molina, []string{"Molina Marketplace", "Molina"}, "*molina*"),
	variants(Aetna, []string{"Aetna"}, "*aetna*"),
	variants(Cigna, []string{"Cigna Healthcare", "Cigna"}, "*cigna*"),
	variants(Healthfirst, []string{"Healthfirst"}, "*healthfirst*", "*health first*"),
	variants(AvMed, []string{"AvMed", "Avmed"}, "*avmed*", "*av med*"),
}

func variants(c Carrier, display []string, patterns ...string) carrierVariants {
	v := carrierVariants{carrier: c, display: display}
	for _, p := range patterns {
		v.patterns = append(v.patterns, glob.MustCompile(p))
	}
	return v
}

// ParseCarrier resolves a carrier id from the supported vocabulary.
func ParseCarrier(name string) (Carrier, error) {
	c := Carrier(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllCarriers {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown carrier %q (supported: %s)", name, joinCarriers(AllCarriers))
}

// DisplayNames returns the filter labels of a carrier, most specific first.
func DisplayNames(c Carrier) []string {
	for _, v := range carrierTable {
		if v.carrier == c {
			return append([]string(nil), v.display...)
		}
	}
	return []string{string(c)}
}

// NormalizeCarrier maps a carrier name as displayed to a carrier id. Names
// outside the vocabulary normalize to their first word, lowercased.
func NormalizeCarrier(name string) Carrier {
	lower := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if lower == "" {
		return ""
	}
	for _, v := range carrierTable {
		for _, p := range v.patterns {
			if p.Match(lower) {
				return v.carrier
			}
		}
	}
	return Carrier(strings.Fields(lower)[0])
}

// ApprovalSet is the immutable set of carriers the operator allows.
type ApprovalSet struct {
	members map[Carrier]struct{}
}

// NewApprovalSet builds an approval set.
func NewApprovalSet(carriers ...Carrier) ApprovalSet {
	a := ApprovalSet{members: make(map[Carrier]struct{}, len(carriers))}
	for _, c := range carriers {
		if c != "" {
			a.members[c] = struct{}{}
		}
	}
	return a
}

// ParseApprovalSet builds an approval set from carrier ids, rejecting unknown ids.
func ParseApprovalSet(names []string) (ApprovalSet, error) {
	carriers := make([]Carrier, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		c, err := ParseCarrier(n)
		if err != nil {
			return ApprovalSet{}, err
		}
		carriers = append(carriers, c)
	}
	return NewApprovalSet(carriers...), nil
}

// Contains reports whether a displayed carrier name belongs to the set.
// Matching is case-insensitive and goes through the variant table. A name
// that embeds an approved id also matches; a name that is merely a prefix of
// one does not.
func (a ApprovalSet) Contains(name string) bool {
	normalized := NormalizeCarrier(name)
	if normalized == "" {
		return false
	}
	if _, ok := a.members[normalized]; ok {
		return true
	}
	lower := strings.ToLower(name)
	for m := range a.members {
		if strings.Contains(lower, string(m)) {
			return true
		}
	}
	return false
}

// Carriers returns the members in vocabulary order.
func (a ApprovalSet) Carriers() []Carrier {
	out := make([]Carrier, 0, len(a.members))
	for _, c := range AllCarriers {
		if _, ok := a.members[c]; ok {
			out = append(out, c)
		}
	}
	var extra []Carrier
	for c := range a.members {
		if !containsCarrier(AllCarriers, c) {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Len returns the number of members.
func (a ApprovalSet) Len() int {
	return len(a.members)
}

// Strings returns the member ids in vocabulary order.
func (a ApprovalSet) Strings() []string {
	cs := a.Carriers()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// String implements fmt.Stringer.
func (a ApprovalSet) String() string {
	return joinCarriers(a.Carriers())
}

func containsCarrier(list []Carrier, c Carrier) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func joinCarriers(cs []Carrier) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
