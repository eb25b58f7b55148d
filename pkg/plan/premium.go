package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Premium is a monthly premium in cents. The zero value is unresolved: the
// amount could not be read, which is distinct from a real $0.00.
type Premium struct {
	cents    int64
	resolved bool
}

// Unresolved is the premium of an offer whose amount could not be read.
var Unresolved = Premium{}

// FromCents returns a resolved premium.
func FromCents(cents int64) Premium {
	return Premium{cents: cents, resolved: true}
}

var (
	amountPattern       = regexp.MustCompile(`\$?\s*([\d,]+(?:\.\d+)?)`)
	dollarAmountPattern = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`)
)

// ParsePremium reads the first amount in s, with or without a dollar sign.
func ParsePremium(s string) (Premium, bool) {
	return parseWith(amountPattern, s)
}

// parseDollarAmount reads the first amount in s that carries a dollar sign.
func parseDollarAmount(s string) (Premium, bool) {
	return parseWith(dollarAmountPattern, s)
}

func parseWith(re *regexp.Regexp, s string) (Premium, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return Unresolved, false
	}
	number := strings.ReplaceAll(m[1], ",", "")
	if number == "" {
		return Unresolved, false
	}

	whole, frac, _ := strings.Cut(number, ".")
	if whole == "" {
		whole = "0"
	}
	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Unresolved, false
	}

	frac += "000"
	cents, err := strconv.ParseInt(frac[:2], 10, 64)
	if err != nil {
		return Unresolved, false
	}
	if frac[2] >= '5' {
		cents++
	}
	return FromCents(dollars*100 + cents), true
}

// Resolved reports whether the amount was read.
func (p Premium) Resolved() bool {
	return p.resolved
}

// IsZero reports whether the premium is a resolved, exact $0.00.
func (p Premium) IsZero() bool {
	return p.resolved && p.cents == 0
}

// Cents returns the amount in cents; 0 when unresolved.
func (p Premium) Cents() int64 {
	return p.cents
}

// Dollars returns the amount as a float for display and range checks.
func (p Premium) Dollars() float64 {
	return float64(p.cents) / 100
}

// String formats the premium as "$12.34", or "unresolved".
func (p Premium) String() string {
	if !p.resolved {
		return "unresolved"
	}
	return fmt.Sprintf("$%d.%02d", p.cents/100, p.cents%100)
}
