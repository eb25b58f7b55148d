package plan

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Offer is a plan as currently displayed.
type Offer struct {
	Carrier     Carrier
	CarrierName string
	PlanName    string
	Premium     Premium

	// Source names the extraction strategy that produced the premium.
	Source string
}

// Strategy names, in the order they are tried.
const (
	SourceCurrentPrice = "current-price"
	SourcePremiumLabel = "premium-label"
	SourcePerMonth     = "per-month"
	SourcePlanSummary  = "plan-summary"
)

// DefaultCurrentPriceClasses are class fragments of the container that holds
// the price actually charged, as opposed to a crossed-out previous price.
var DefaultCurrentPriceClasses = []string{"_mt6_wndsr", "current-price", "premium-current"}

// summaryCeiling rejects amounts in the plan summary that cannot be a monthly
// premium after subsidy (deductibles, out-of-pocket maximums).
const summaryCeiling = 2000 * 100

const maxPlanNameLen = 50

// Extractor reads offers from rendered HTML.
type Extractor struct {
	CurrentPriceClasses []string
}

// ExtractOffer reads an offer with the default current-price classes.
func ExtractOffer(doc string) Offer {
	return Extractor{CurrentPriceClasses: DefaultCurrentPriceClasses}.Extract(doc)
}

// Extract reads carrier, plan name and premium from an HTML document or
// fragment. Amounts inside a struck-through or previous-price container are
// never returned; when no strategy finds an amount the premium is Unresolved.
func (x Extractor) Extract(doc string) Offer {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return Offer{Premium: Unresolved}
	}

	offer := Offer{Premium: Unresolved}
	offer.CarrierName = carrierName(root)
	offer.Carrier = NormalizeCarrier(offer.CarrierName)
	offer.PlanName = planName(root)

	strategies := []struct {
		name string
		run  func(*html.Node) (Premium, bool)
	}{
		{SourceCurrentPrice, x.fromCurrentPrice},
		{SourcePremiumLabel, fromPremiumLabel},
		{SourcePerMonth, fromPerMonth},
		{SourcePlanSummary, fromPlanSummary},
	}
	for _, s := range strategies {
		if p, ok := s.run(root); ok {
			offer.Premium = p
			offer.Source = s.name
			break
		}
	}
	return offer
}

// fromCurrentPrice reads the dollars widget inside the current-price container.
func (x Extractor) fromCurrentPrice(root *html.Node) (Premium, bool) {
	for _, container := range findAll(root, func(n *html.Node) bool {
		return isElement(n) && classHasAny(n, x.CurrentPriceClasses)
	}) {
		if struck(container) {
			continue
		}
		for _, v := range dollarVars(container) {
			if p, ok := varAmount(v); ok {
				return p, true
			}
		}
	}
	return Unresolved, false
}

// fromPremiumLabel reads the amount next to a "Premium" label.
func fromPremiumLabel(root *html.Node) (Premium, bool) {
	labels := findAll(root, func(n *html.Node) bool {
		if !isElement(n) || struck(n) {
			return false
		}
		own := strings.ToLower(ownText(n))
		return strings.Contains(own, "premium") && !strings.Contains(own, "credit") && len(own) <= 30
	})
	for _, label := range labels {
		scope := label
		for depth := 0; depth < 3 && scope.Parent != nil; depth++ {
			scope = scope.Parent
			for _, v := range dollarVars(scope) {
				if p, ok := varAmount(v); ok {
					return p, true
				}
			}
			if p, ok := parseDollarAmount(visibleText(scope)); ok {
				return p, true
			}
		}
	}
	return Unresolved, false
}

// fromPerMonth reads an amount from text mentioning "/mo" outside any
// struck-through ancestor.
func fromPerMonth(root *html.Node) (Premium, bool) {
	texts := findAll(root, func(n *html.Node) bool {
		if n.Type != html.TextNode {
			return false
		}
		t := strings.ToLower(n.Data)
		return strings.Contains(t, "/mo") || strings.Contains(t, "/ mo") || strings.Contains(t, "per month")
	})
	for _, t := range texts {
		if t.Parent == nil || struck(t.Parent) {
			continue
		}
		scope := t.Parent
		for depth := 0; depth < 2 && scope != nil; depth++ {
			if p, ok := parseDollarAmount(visibleText(scope)); ok {
				return p, true
			}
			scope = scope.Parent
		}
	}
	return Unresolved, false
}

// fromPlanSummary scans the plan summary panel, rejecting out-of-range amounts.
func fromPlanSummary(root *html.Node) (Premium, bool) {
	headings := findAll(root, func(n *html.Node) bool {
		return isElement(n) && strings.Contains(strings.ToLower(ownText(n)), "plan summary")
	})
	for _, h := range headings {
		scope := h
		for depth := 0; depth < 4 && scope.Parent != nil; depth++ {
			scope = scope.Parent
			vars := dollarVars(scope)
			if len(vars) == 0 {
				continue
			}
			for _, v := range vars {
				if p, ok := varAmount(v); ok && p.Cents() < summaryCeiling {
					return p, true
				}
			}
			break
		}
	}
	return Unresolved, false
}

func carrierName(root *html.Node) string {
	matchers := []func(*html.Node) string{
		func(n *html.Node) string {
			if n.DataAtom == atom.H2 && classHas(n, "carrier") {
				return visibleText(n)
			}
			return ""
		},
		func(n *html.Node) string {
			if isElement(n) && classHas(n, "carrier-name") {
				return visibleText(n)
			}
			return ""
		},
		func(n *html.Node) string {
			if isElement(n) && attr(n, "data-carrier") != "" {
				return attr(n, "data-carrier")
			}
			return ""
		},
		func(n *html.Node) string {
			if n.DataAtom == atom.Img && classHas(n, "issuer-logo") {
				return attr(n, "alt")
			}
			return ""
		},
		func(n *html.Node) string {
			alt := attr(n, "alt")
			if n.DataAtom == atom.Img && strings.Contains(strings.ToLower(alt), "logo") {
				return trimLogo(alt)
			}
			return ""
		},
	}
	for _, m := range matchers {
		for _, n := range findAll(root, isElement) {
			if name := strings.TrimSpace(m(n)); name != "" {
				return trimLogo(name)
			}
		}
	}
	return ""
}

func trimLogo(s string) string {
	lower := strings.ToLower(s)
	if i := strings.LastIndex(lower, " logo"); i > 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func planName(root *html.Node) string {
	for _, n := range findAll(root, func(n *html.Node) bool { return isElement(n) && classHas(n, "plan-name") }) {
		if name := visibleText(n); name != "" {
			return truncate(name, maxPlanNameLen)
		}
	}
	for _, n := range findAll(root, func(n *html.Node) bool { return n.DataAtom == atom.H3 || n.DataAtom == atom.H4 }) {
		name := visibleText(n)
		lower := strings.ToLower(name)
		if len(name) <= 5 || lower == "plan" || strings.HasPrefix(lower, "plan ") || strings.Contains(lower, "premium") {
			continue
		}
		return truncate(name, maxPlanNameLen)
	}
	return ""
}

// struck reports whether n or any ancestor renders a superseded price.
func struck(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		switch cur.DataAtom {
		case atom.S, atom.Del, atom.Strike:
			return true
		}
		class := strings.ToLower(attr(cur, "class"))
		if strings.Contains(class, "strike") || strings.Contains(class, "line-through") ||
			strings.Contains(class, "previous") || strings.Contains(class, "original-price") {
			return true
		}
		style := strings.ToLower(attr(cur, "style"))
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "line-through") {
			return true
		}
	}
	return false
}

// dollarVars returns the non-struck amount widgets under n.
func dollarVars(n *html.Node) []*html.Node {
	return findAll(n, func(c *html.Node) bool {
		return c.DataAtom == atom.Var && attr(c, "data-var") == "dollars" && !struck(c)
	})
}

// varAmount reads a dollars widget, joining a sibling cents widget when the
// dollars text has no fraction.
func varAmount(v *html.Node) (Premium, bool) {
	text := visibleText(v)
	if !strings.Contains(text, ".") && v.Parent != nil {
		for _, sib := range findAll(v.Parent, func(c *html.Node) bool {
			return c.DataAtom == atom.Var && attr(c, "data-var") == "cents" && !struck(c)
		}) {
			cents := strings.TrimLeft(visibleText(sib), ".")
			if cents != "" {
				text = strings.TrimSpace(text) + "." + cents
			}
			break
		}
	}
	return ParsePremium(text)
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func isElement(n *html.Node) bool {
	return n.Type == html.ElementNode
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func classHas(n *html.Node, fragment string) bool {
	return strings.Contains(strings.ToLower(attr(n, "class")), strings.ToLower(fragment))
}

func classHasAny(n *html.Node, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && classHas(n, f) {
			return true
		}
	}
	return false
}

// ownText is the text of n's direct text children.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// visibleText is the text under n, skipping struck-through subtrees, scripts and styles.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Script, atom.Style:
				return
			}
			if c != n && struck(c) && !struck(n) {
				return
			}
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
