package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/locator"
	"github.com/entrhq/renewbot/pkg/logging"
)

// ErrNoQualifyingPlan means the filtered results held no approved $0.00 plan.
var ErrNoQualifyingPlan = errors.New("no qualifying plan found")

// Control names used by the engine.
const (
	ControlOfferPanel      = "offer-panel"
	ControlCarrierCheckbox = "carrier-checkbox"
	ControlResultCard      = "result-card"
	ControlCardAction      = "card-action"
	ControlReplaceConfirm  = "replace-confirm"
)

// DefaultControls returns the candidates for the plan pages.
func DefaultControls() locator.Catalog {
	return locator.Catalog{
		ControlOfferPanel: locator.NewTarget(ControlOfferPanel,
			locator.XPath("//*[contains(normalize-space(),'Plan summary')]/ancestor::section[1]", "plan summary section"),
			locator.CSS("div[class*='plan-summary']", "plan summary div"),
			locator.CSS("main", "main content"),
		).Requiring(locator.RequirePresent),
		ControlCarrierCheckbox: locator.NewTarget(ControlCarrierCheckbox,
			locator.XPath("//span[normalize-space()='%s']/ancestor::label[1]//input[@type='checkbox']", "span label checkbox"),
			locator.XPath("//label[contains(normalize-space(),'%s')]//input[@type='checkbox']", "label contains"),
			locator.CSS("input[type='checkbox'][value*='%s' i]", "checkbox value"),
		).Requiring(locator.RequirePresent),
		ControlResultCard: locator.NewTarget(ControlResultCard,
			locator.CSS("[data-testid*='plan-card']", "plan card test id"),
			locator.CSS("div[class*='PlanCard']", "plan card class"),
			locator.CSS("div[class*='plan-card']", "plan card kebab class"),
			locator.XPath("//button[normalize-space()='Add to cart' or normalize-space()='View in cart']/ancestor::*[.//var[@data-var='dollars']][1]", "card around cart button"),
		),
		ControlCardAction: locator.NewTarget(ControlCardAction,
			locator.XPath(".//button[normalize-space()='Add to cart']", "add to cart"),
			locator.XPath(".//button[normalize-space()='View in cart']", "view in cart"),
			locator.XPath(".//button[contains(normalize-space(),'cart')]", "any cart button"),
		),
		ControlReplaceConfirm: locator.NewTarget(ControlReplaceConfirm,
			locator.XPath("//button[normalize-space()='Yes, replace with this plan']", "replace confirmation"),
			locator.XPath("//button[contains(normalize-space(),'replace')]", "replace button"),
		),
	}
}

// Options tunes the search path.
type Options struct {
	// SettleDelay is waited after the filter is applied.
	SettleDelay time.Duration

	// SettleTimeout bounds the wait for the result count to stop changing.
	SettleTimeout time.Duration

	PollInterval time.Duration

	// ConfirmTimeout bounds optional dialogs such as the replace confirmation.
	ConfirmTimeout time.Duration

	CurrentPriceClasses []string
}

// Selection is the plan put into the application by the search path.
type Selection struct {
	Offer Offer

	// Card is the 0-based position of the chosen card in the results.
	Card int

	// InCart is true when the plan was already in the cart ("View in cart").
	InCart bool

	// Replaced is true when the site asked to replace a previous plan.
	Replaced bool
}

// Engine reads offers and runs the carrier-filtered search.
type Engine struct {
	resolver  *locator.Resolver
	controls  locator.Catalog
	approved  ApprovalSet
	extractor Extractor
	opts      Options
	logger    *logging.Logger
}

// NewEngine creates an engine.
func NewEngine(resolver *locator.Resolver, controls locator.Catalog, approved ApprovalSet, opts Options, logger *logging.Logger) *Engine {
	if len(opts.CurrentPriceClasses) == 0 {
		opts.CurrentPriceClasses = DefaultCurrentPriceClasses
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		resolver:  resolver,
		controls:  DefaultControls().Merge(controls),
		approved:  approved,
		extractor: Extractor{CurrentPriceClasses: opts.CurrentPriceClasses},
		opts:      opts,
		logger:    logger,
	}
}

// Approved returns the approval set the engine decides against.
func (e *Engine) Approved() ApprovalSet {
	return e.approved
}

// CurrentOffer extracts the offer shown on the plan review page, scoped to
// the offer panel when it can be found.
func (e *Engine) CurrentOffer(ctx context.Context) (Offer, error) {
	var doc string
	match, err := e.resolver.Find(ctx, e.controls.Get(ControlOfferPanel))
	switch {
	case err == nil:
		doc, _ = match.Element.OuterHTML()
	case locator.IsFatal(err):
		return Offer{}, err
	}

	if doc == "" {
		page, err := e.resolver.Page()
		if err != nil {
			return Offer{}, err
		}
		doc, err = page.Content()
		if err != nil {
			return Offer{}, fmt.Errorf("failed to read plan page: %w", err)
		}
	}

	offer := e.extractor.Extract(doc)
	if offer.Premium.Resolved() && offer.CarrierName == "" {
		// The panel may omit the carrier header; the page rarely does.
		if page, err := e.resolver.Page(); err == nil {
			if full, err := page.Content(); err == nil {
				whole := e.extractor.Extract(full)
				offer.CarrierName, offer.Carrier = whole.CarrierName, whole.Carrier
				if offer.PlanName == "" {
					offer.PlanName = whole.PlanName
				}
			}
		}
	}
	e.logger.Infof("offer: carrier=%q plan=%q premium=%s via %s", offer.CarrierName, offer.PlanName, offer.Premium, offer.Source)
	return offer, nil
}

// Decide reports whether offer can be enrolled as is.
func (e *Engine) Decide(offer Offer) bool {
	return ShouldAcceptOffer(offer, e.approved)
}

// SearchAndReplace filters results to the approved carriers, picks the first
// card with a genuine $0.00 premium and puts it into the application. It
// returns ErrNoQualifyingPlan when no card qualifies.
func (e *Engine) SearchAndReplace(ctx context.Context) (Selection, error) {
	applied, err := e.ApplyCarrierFilter(ctx)
	if err != nil {
		return Selection{}, err
	}
	if applied == 0 {
		e.logger.Warnf("no carrier filter could be applied; only cards naming an approved carrier qualify")
	}

	if err := e.waitForResults(ctx); err != nil {
		return Selection{}, err
	}

	choice, err := e.scan(ctx, applied > 0)
	if err != nil {
		return Selection{}, err
	}
	return e.add(ctx, choice)
}

// ApplyCarrierFilter checks the results filter for every approved carrier and
// returns how many carriers were applied.
func (e *Engine) ApplyCarrierFilter(ctx context.Context) (int, error) {
	short := e.opts.ConfirmTimeout
	checkbox := e.controls.Get(ControlCarrierCheckbox)
	applied := 0
	for _, carrier := range e.approved.Carriers() {
		ok := false
		for _, name := range DisplayNames(carrier) {
			_, err := e.resolver.Act(ctx, checkbox.With(name).Within(short), locator.Check)
			if err == nil {
				e.logger.Infof("filter: %s applied via %q", carrier, name)
				ok = true
				break
			}
			if locator.IsFatal(err) {
				return applied, err
			}
		}
		if ok {
			applied++
		} else {
			e.logger.Warnf("filter: no checkbox for %s", carrier)
		}
	}
	return applied, nil
}

// waitForResults waits until the number of result cards stops changing.
func (e *Engine) waitForResults(ctx context.Context) error {
	if err := locator.Sleep(ctx, e.opts.SettleDelay); err != nil {
		return err
	}
	deadline := time.Now().Add(e.opts.SettleTimeout)
	last := -1
	for {
		cards, err := e.resolver.FindAll(ctx, e.controls.Get(ControlResultCard))
		if err != nil {
			return err
		}
		if len(cards) > 0 && len(cards) == last {
			return nil
		}
		last = len(cards)
		if !time.Now().Before(deadline) {
			return nil
		}
		if err := locator.Sleep(ctx, e.opts.PollInterval); err != nil {
			return err
		}
	}
}

type candidate struct {
	card  browser.Element
	offer Offer
	index int
}

func (e *Engine) scan(ctx context.Context, filtered bool) (candidate, error) {
	cards, err := e.resolver.FindAll(ctx, e.controls.Get(ControlResultCard))
	if err != nil {
		return candidate{}, err
	}
	e.logger.Infof("scanning %d result cards", len(cards))

	for i, card := range cards {
		doc, err := card.OuterHTML()
		if err != nil {
			if locator.IsFatal(err) {
				return candidate{}, err
			}
			continue
		}
		offer := e.extractor.Extract(doc)
		e.logger.Debugf("card %d: carrier=%q premium=%s", i, offer.CarrierName, offer.Premium)

		if !offer.Premium.IsZero() {
			continue
		}
		if offer.CarrierName != "" {
			if !e.approved.Contains(offer.CarrierName) {
				continue
			}
		} else if !filtered {
			continue
		}
		return candidate{card: card, offer: offer, index: i}, nil
	}
	return candidate{}, ErrNoQualifyingPlan
}

func (e *Engine) add(ctx context.Context, c candidate) (Selection, error) {
	var button browser.Element
	for _, cand := range e.controls.Get(ControlCardAction).Candidates {
		els, err := c.card.QueryAll(cand.Selector())
		if err != nil {
			if locator.IsFatal(err) {
				return Selection{}, err
			}
			continue
		}
		if len(els) > 0 {
			button = els[0]
			break
		}
	}
	if button == nil {
		return Selection{}, fmt.Errorf("plan card %d has no cart control: %w", c.index, browser.ErrNotFound)
	}

	label, _ := button.Text()
	sel := Selection{
		Offer:  c.offer,
		Card:   c.index,
		InCart: strings.Contains(strings.ToLower(label), "view in cart"),
	}
	if err := button.Click(); err != nil {
		return Selection{}, fmt.Errorf("failed to add plan card %d: %w", c.index, err)
	}

	if !sel.InCart {
		_, err := e.resolver.Click(ctx, e.controls.Get(ControlReplaceConfirm).Within(e.opts.ConfirmTimeout))
		switch {
		case err == nil:
			sel.Replaced = true
		case locator.IsFatal(err):
			return Selection{}, err
		}
	}
	e.logger.Infof("selected card %d (%s, %s), in cart=%v replaced=%v", c.index, c.offer.CarrierName, c.offer.Premium, sel.InCart, sel.Replaced)
	return sel, nil
}
