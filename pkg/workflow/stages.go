package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/locator"
	"github.com/entrhq/renewbot/pkg/logging"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/entrhq/renewbot/pkg/types"
)

// Stage names, in flow order.
const (
	StageAdvancedActions     = "advanced-actions"
	StageOpenRenewal         = "open-renewal"
	StageContinueWithPlan    = "continue-with-plan"
	StageConsent             = "consent"
	StageContactSummary      = "contact-summary"
	StageHouseholdSummary    = "household-summary"
	StageOtherRelationships  = "other-relationships"
	StageApplicants          = "applicants"
	StagePregnancy           = "pregnancy-questions"
	StageSkipToEnd           = "skip-to-end"
	StageFinalize            = "finalize-pages"
	StageAddressValidation   = "address-validation"
	StageExistingCoverage    = "existing-coverage"
	StageFosterCare          = "foster-care"
	StageAdditionalQuestions = "additional-questions"
	StageSignature           = "signature"
	StageFollowups           = "followups-check"
	StageFamilyPolicy        = "family-policy-check"
	StageEligibilityLetter   = "eligibility-letter"
	StageReviewPlan          = "review-plan"
	StagePlanDecision        = "plan-decision"
	StageEnrollDirect        = "enroll-direct"
	StageChangePlan          = "change-plan"
	StageCart                = "cart"
	StageEnrollAfterChange   = "enroll-after-change"
	StageCongratulations     = "congratulations"
)

const (
	// maxContinuePages bounds the generic Continue pages clicked through
	// on the way to the signature page.
	maxContinuePages = 3

	minSignatureLen = 3
)

var (
	followupKeywords = []string{"dmi", "verif", "document", "request", "required", "pending", "needed"}
	crashMarkers     = []string{"this page isn't working", "application error", "status code 5"}
)

// Stages returns the renewal flow.
func Stages() []Stage {
	return []Stage{
		{Name: StageAdvancedActions, Run: openActions, Attempts: 2},
		{Name: StageOpenRenewal, Run: openRenewal, SafePoint: true},
		{Name: StageContinueWithPlan, Run: continueWithPlan},
		{Name: StageConsent, Run: consent, SafePoint: true},
		{Name: StageContactSummary, Run: contactSummary},
		{Name: StageHouseholdSummary, Run: nextPage},
		{Name: StageOtherRelationships, Run: otherRelationships, Policy: BestEffort},
		{Name: StageApplicants, Run: nextPage, Policy: BestEffort, SafePoint: true},
		{Name: StagePregnancy, When: (*Client).Female, Run: pregnancyQuestions, Policy: BestEffort},
		{Name: StageSkipToEnd, Run: skipToEnd, Policy: BestEffort},
		{Name: StageFinalize, When: shortPath, Run: continueToSignature, Policy: BestEffort},
		{Name: StageAddressValidation, When: longPath, Run: addressValidation, Policy: BestEffort},
		{Name: StageExistingCoverage, When: longPath, Run: existingCoverage, Policy: BestEffort},
		{Name: StageFosterCare, When: longPath, Run: fosterCare, Policy: BestEffort},
		{Name: StageAdditionalQuestions, When: longPath, Run: continueToSignature, Policy: BestEffort, SafePoint: true},
		{Name: StageSignature, Run: signature, Attempts: 3, SafePoint: true},
		{Name: StageFollowups, Run: followupsCheck},
		{Name: StageFamilyPolicy, Run: familyPolicyCheck},
		{Name: StageEligibilityLetter, Run: eligibilityLetter, Policy: BestEffort},
		{Name: StageReviewPlan, Run: reviewPlan, SafePoint: true},
		{Name: StagePlanDecision, Run: planDecision, SafePoint: true},
		{Name: StageEnrollDirect, When: directEnroll, Run: enroll},
		{Name: StageChangePlan, When: changePlan, Run: changePlans},
		{Name: StageCart, When: changePlan, Run: cart, Policy: BestEffort},
		{Name: StageEnrollAfterChange, When: changePlan, Run: enroll},
		{Name: StageCongratulations, Run: congratulations, Policy: BestEffort},
	}
}

func shortPath(c *Client) bool { return c.ShortPath }

// next clicks the generic Next/Continue control.
func (s *Sequencer) next(ctx context.Context) error {
	_, err := s.resolver.Click(ctx, s.control(ControlNext))
	return err
}

// clickOptional clicks an optional control. Absence is not an error.
func (s *Sequencer) clickOptional(ctx context.Context, name string) (bool, error) {
	_, err := s.resolver.Click(ctx, s.optional(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, browser.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func nextPage(ctx context.Context, s *Sequencer, _ *Client) error {
	return s.next(ctx)
}

func openActions(ctx context.Context, s *Sequencer, c *Client) error {
	_, err := s.resolver.Click(ctx, s.control(ControlAdvancedActions).With(c.Record.Row))
	return err
}

// openRenewal opens the "Renew for <year>" link and works out whether the
// flow came up in a new tab or replaced the roster in the same tab.
func openRenewal(ctx context.Context, s *Sequencer, c *Client) error {
	before, err := s.session.Tabs()
	if err != nil {
		return err
	}
	page, err := s.session.Page()
	if err != nil {
		return err
	}
	startURL := page.URL()

	link, err := s.resolver.Find(ctx, s.control(ControlRenewLink).With(s.cfg.RenewalYear))
	if err != nil {
		return err
	}
	if !s.openInNewTab(page, link.Element) {
		if err := link.Element.Click(); err != nil {
			return fmt.Errorf("failed to click renewal link: %w", err)
		}
	}
	return s.detectTopology(ctx, c, before, startURL)
}

// openInNewTab opens the link's href with window.open. It reports false
// when the link has no href or the script fails, and the caller clicks.
func (s *Sequencer) openInNewTab(page browser.Page, link browser.Element) bool {
	href := anchorHref(link, s.control(ControlRenewLinkAncestor))
	if href == "" {
		return false
	}
	if _, err := page.Evaluate("href => window.open(href, '_blank')", href); err != nil {
		s.logger.Debugf("window.open failed, clicking the link instead: %v", err)
		return false
	}
	return true
}

func anchorHref(el browser.Element, anchor locator.Target) string {
	if href, _ := el.Attribute("href"); href != "" {
		return href
	}
	for _, cand := range anchor.Candidates {
		els, err := el.QueryAll(cand.Selector())
		if err != nil || len(els) == 0 {
			continue
		}
		if href, _ := els[0].Attribute("href"); href != "" {
			return href
		}
	}
	return ""
}

func (s *Sequencer) detectTopology(ctx context.Context, c *Client, before []browser.TabID, startURL string) error {
	known := make(map[browser.TabID]bool, len(before))
	for _, id := range before {
		known[id] = true
	}

	deadline := time.Now().Add(s.cfg.TabDetectTimeout)
	for {
		tabs, err := s.session.Tabs()
		if err != nil {
			return err
		}
		for _, id := range tabs {
			if known[id] {
				continue
			}
			c.Topology, c.RenewalTab = TopologyNewTab, id
			s.logger.Infof("%s: renewal opened in new tab %s", c.Record.FullName, id)
			return s.session.Switch(id)
		}

		page, err := s.session.Page()
		if err != nil {
			return err
		}
		if page.URL() != startURL {
			c.Topology, c.RenewalTab = TopologySameTab, s.session.Active()
			s.logger.Infof("%s: renewal opened in the roster tab", c.Record.FullName)
			return nil
		}

		if !time.Now().Before(deadline) {
			return fmt.Errorf("renewal flow did not open within %s", s.cfg.TabDetectTimeout)
		}
		if err := locator.Sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func continueWithPlan(ctx context.Context, s *Sequencer, _ *Client) error {
	_, err := s.resolver.Click(ctx, s.control(ControlContinueWithPlan))
	return err
}

func consent(ctx context.Context, s *Sequencer, c *Client) error {
	stored, err := s.resolver.Present(ctx, s.optional(ControlConsentBanner))
	if err != nil {
		return err
	}
	if stored {
		// The banner does not tick the boxes for this application.
		s.logger.Infof("%s: consent already on file, confirming checkboxes", c.Record.FullName)
	}

	for _, name := range []string{ControlConsentData, ControlConsentTruth} {
		if _, err := s.resolver.Act(ctx, s.control(name), locator.Check); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := s.resolver.Act(ctx, s.control(ControlConsentStorage), locator.Select); err != nil {
		return fmt.Errorf("%s: %w", ControlConsentStorage, err)
	}
	return s.next(ctx)
}

// contactSummary reads the primary applicant's sex, which decides whether
// the pregnancy questions are expected.
func contactSummary(ctx context.Context, s *Sequencer, c *Client) error {
	match, err := s.resolver.Find(ctx, s.optional(ControlGenderCell))
	if err != nil && locator.IsFatal(err) {
		return err
	}
	var text string
	if err == nil {
		text, _ = match.Element.Text()
	}

	gender, ok := ParseGender(text)
	if !ok {
		gender = types.GenderMale
		s.logger.Warnf("%s: sex not readable (%q), assuming male", c.Record.FullName, text)
	}
	c.Record.Gender, c.Record.GenderDefaulted = gender, !ok
	return s.next(ctx)
}

// ParseGender reads a sex column value.
func ParseGender(text string) (types.Gender, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(text, "female"):
		return types.GenderFemale, true
	case strings.Contains(text, "male"):
		return types.GenderMale, true
	default:
		return types.GenderUnknown, false
	}
}

func otherRelationships(ctx context.Context, s *Sequencer, _ *Client) error {
	shown, err := s.resolver.Present(ctx, s.optional(ControlRelationships))
	if err != nil || !shown {
		return err
	}
	return s.next(ctx)
}

// pregnancyQuestions answers No to the pregnancy and foster care questions
// shown to female applicants. The No buttons appear in question order.
func pregnancyQuestions(ctx context.Context, s *Sequencer, c *Client) error {
	pregnant, err := s.resolver.Present(ctx, s.optional(ControlPregnancyHeading))
	if err != nil {
		return err
	}
	foster, err := s.resolver.Present(ctx, s.optional(ControlFosterHeading))
	if err != nil {
		return err
	}

	want := 0
	if pregnant {
		want++
	}
	if foster {
		want++
	}
	if want == 0 {
		s.logger.Debugf("%s: no pregnancy questions shown", c.Record.FullName)
		return nil
	}

	answers, err := s.resolver.FindAll(ctx, s.control(ControlAnswerNo))
	if err != nil {
		return err
	}
	if len(answers) < want {
		return fmt.Errorf("expected %d No answers, found %d", want, len(answers))
	}
	for i := 0; i < want; i++ {
		if err := answers[i].Click(); err != nil {
			return fmt.Errorf("failed to answer question %d: %w", i+1, err)
		}
	}
	return s.next(ctx)
}

func skipToEnd(ctx context.Context, s *Sequencer, c *Client) error {
	clicked, err := s.clickOptional(ctx, ControlSkipToEnd)
	if err != nil {
		return err
	}
	c.ShortPath = clicked
	if !clicked {
		s.logger.Infof("%s: no skip to the end, answering each page", c.Record.FullName)
	}
	return nil
}

// continueToSignature clicks through generic pages until the signature
// input shows up.
func continueToSignature(ctx context.Context, s *Sequencer, _ *Client) error {
	for i := 0; i < maxContinuePages; i++ {
		ready, err := s.resolver.Present(ctx, s.optional(ControlSignatureInput))
		if err != nil || ready {
			return err
		}
		clicked, err := s.clickOptional(ctx, ControlNext)
		if err != nil || !clicked {
			return err
		}
	}
	return nil
}

func addressValidation(ctx context.Context, s *Sequencer, c *Client) error {
	shown, err := s.resolver.Present(ctx, s.optional(ControlAddressHeading))
	if err != nil || !shown {
		return err
	}
	if _, err := s.resolver.Act(ctx, s.optional(ControlAnswerYes), locator.Select); err != nil {
		return fmt.Errorf("confirm address: %w", err)
	}
	if _, err := s.resolver.Click(ctx, s.optional(ControlDialogContinue)); err != nil {
		return err
	}
	s.logger.Debugf("%s: address confirmed", c.Record.FullName)
	return nil
}

func existingCoverage(ctx context.Context, s *Sequencer, _ *Client) error {
	_, err := s.resolver.Act(ctx, s.optional(ControlCoverageNo), locator.Select)
	switch {
	case errors.Is(err, browser.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	return s.next(ctx)
}

func fosterCare(ctx context.Context, s *Sequencer, _ *Client) error {
	clicked, err := s.clickOptional(ctx, ControlFosterNo)
	if err != nil || !clicked {
		return err
	}
	return s.next(ctx)
}

// signature signs the application and submits it. The page's Copy control
// puts the expected signature on the clipboard; when the clipboard does not
// hold something that looks like this client's name, the full name is typed.
func signature(ctx context.Context, s *Sequencer, c *Client) error {
	input, err := s.resolver.Find(ctx, s.control(ControlSignatureInput))
	if err != nil {
		return err
	}

	text := c.Record.FullName
	copied, err := s.clickOptional(ctx, ControlSignatureCopy)
	if err != nil {
		return err
	}
	if copied {
		if clip := s.copiedSignature(c); clip != "" {
			text = clip
		}
	}

	if err := input.Element.Fill(text); err != nil {
		return fmt.Errorf("failed to fill signature: %w", err)
	}
	value, err := input.Element.Value()
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(value)) < minSignatureLen {
		return fmt.Errorf("signature field holds %q", value)
	}

	if err := s.next(ctx); err != nil {
		return err
	}
	if _, err := s.resolver.Find(ctx, s.control(ControlEligibilityPage).Within(s.cfg.StageTimeout)); err != nil {
		return fmt.Errorf("eligibility results did not load: %w", err)
	}
	return nil
}

func (s *Sequencer) copiedSignature(c *Client) string {
	text, err := s.clipboard.ReadAll()
	if err != nil {
		s.logger.Debugf("%s: clipboard unavailable: %v", c.Record.FullName, err)
		return ""
	}
	text = strings.TrimSpace(text)
	if len(text) < minSignatureLen {
		return ""
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(c.Record.FirstName)) {
		s.logger.Debugf("%s: clipboard holds %q, typing the name", c.Record.FullName, logging.Truncate(text, 40))
		return ""
	}
	return text
}

// FollowupKeyword returns the verification term found in a followups cell.
// An empty cell, or one that only says the member can enroll, has none.
func FollowupKeyword(cell string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(cell))
	if text == "" || strings.Contains(text, "enroll") {
		return "", false
	}
	for _, kw := range followupKeywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func followupsCheck(ctx context.Context, s *Sequencer, c *Client) error {
	match, err := s.resolver.Find(ctx, s.optional(ControlFollowupsCell))
	if err != nil {
		if locator.IsFatal(err) {
			return err
		}
		s.logger.Warnf("%s: followups column not found, assuming none", c.Record.FullName)
		return nil
	}
	text, err := match.Element.Text()
	if err != nil {
		if locator.IsFatal(err) {
			return err
		}
		s.logger.Warnf("%s: followups unreadable, assuming none: %v", c.Record.FullName, err)
		return nil
	}
	if kw, ok := FollowupKeyword(text); ok {
		return &OutcomeError{
			Outcome: types.OutcomeSkippedManual,
			Reason:  fmt.Sprintf("followups need manual review (%s): %s", kw, logging.Truncate(strings.TrimSpace(text), 80)),
		}
	}
	return nil
}

func familyPolicyCheck(ctx context.Context, s *Sequencer, _ *Client) error {
	members, err := s.resolver.FindAll(ctx, s.control(ControlEligibleMember))
	if err != nil {
		return err
	}
	if len(members) > 1 {
		return &OutcomeError{
			Outcome: types.OutcomeSkippedFamily,
			Reason:  fmt.Sprintf("%d household members eligible to enroll", len(members)),
		}
	}
	return nil
}

func eligibilityLetter(ctx context.Context, s *Sequencer, c *Client) error {
	if s.cfg.DownloadDir == "" {
		return nil
	}
	page, err := s.session.Page()
	if err != nil {
		return err
	}
	dir := filepath.Join(s.cfg.DownloadDir, c.Record.AttemptID)
	path, err := page.Download(ctx, func() error {
		_, err := s.resolver.Click(ctx, s.optional(ControlDownloadLetter))
		return err
	}, dir, s.cfg.DownloadTimeout)
	if err != nil {
		return fmt.Errorf("letter download: %w", err)
	}

	pages, err := ValidateLetter(path)
	if err != nil {
		return err
	}
	c.LetterPath, c.LetterPages = path, pages
	s.logger.Infof("%s: saved eligibility letter %s (%d pages)", c.Record.FullName, path, pages)
	return nil
}

func reviewPlan(ctx context.Context, s *Sequencer, c *Client) error {
	if _, err := s.resolver.Click(ctx, s.control(ControlReviewPlan)); err != nil {
		return err
	}
	if _, err := s.resolver.Find(ctx, s.control(ControlConfirmPlanPage).Within(s.cfg.StageTimeout)); err != nil {
		if locator.IsFatal(err) {
			return err
		}
		s.logger.Warnf("%s: plan confirmation heading not seen, reading the offer anyway", c.Record.FullName)
	}
	return s.pageAlive(ctx)
}

// pageAlive waits for the document to finish loading and fails when the
// site rendered an error page instead of the plan.
func (s *Sequencer) pageAlive(ctx context.Context) error {
	page, err := s.session.Page()
	if err != nil {
		return err
	}
	if err := s.waitReady(ctx, page); err != nil {
		return err
	}
	text, err := page.Text()
	if err != nil {
		return err
	}
	if marker, crashed := CrashMarker(text); crashed {
		return fmt.Errorf("plan page shows an error: %q", marker)
	}
	return nil
}

func (s *Sequencer) waitReady(ctx context.Context, page browser.Page) error {
	deadline := time.Now().Add(s.cfg.StageTimeout)
	for {
		v, err := page.Evaluate("() => document.readyState", nil)
		if err != nil {
			if locator.IsFatal(err) {
				return err
			}
			s.logger.Debugf("readyState unavailable: %v", err)
			return nil
		}
		state, ok := v.(string)
		if !ok || state == "complete" {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("page still %q after %s", state, s.cfg.StageTimeout)
		}
		if err := locator.Sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// CrashMarker returns the error-page phrase found in page text.
func CrashMarker(text string) (string, bool) {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	for _, m := range crashMarkers {
		if strings.Contains(text, m) {
			return m, true
		}
	}
	return "", false
}

func planDecision(ctx context.Context, s *Sequencer, c *Client) error {
	offer, err := s.plans.CurrentOffer(ctx)
	if err != nil {
		return err
	}
	c.Offer = offer
	recordOffer(c.Record, offer)
	c.Accepted = s.plans.Decide(offer)

	if c.Accepted {
		s.logger.Infof("%s: keeping %s at %s", c.Record.FullName, c.Record.Carrier, offer.Premium)
	} else {
		s.logger.Infof("%s: %q at %s does not qualify, searching approved carriers", c.Record.FullName, c.Record.Carrier, offer.Premium)
	}
	return nil
}

func recordOffer(r *types.ClientRecord, offer plan.Offer) {
	r.Carrier = offer.CarrierName
	if r.Carrier == "" {
		r.Carrier = string(offer.Carrier)
	}
	r.Plan = offer.PlanName
	r.Premium = ""
	if offer.Premium.Resolved() {
		r.Premium = offer.Premium.String()
	}
}

func (s *Sequencer) dismissUpsell(ctx context.Context) error {
	dismissed, err := s.clickOptional(ctx, ControlSilverPopup)
	if dismissed {
		s.logger.Debugf("dismissed the silver plan offer")
	}
	return err
}

func enroll(ctx context.Context, s *Sequencer, _ *Client) error {
	if err := s.dismissUpsell(ctx); err != nil {
		return err
	}
	_, err := s.resolver.Click(ctx, s.control(ControlEnroll))
	return err
}

func changePlans(ctx context.Context, s *Sequencer, c *Client) error {
	if _, err := s.resolver.Click(ctx, s.control(ControlChangePlans)); err != nil {
		return err
	}
	sel, err := s.plans.SearchAndReplace(ctx)
	if errors.Is(err, plan.ErrNoQualifyingPlan) {
		return &OutcomeError{Outcome: types.OutcomeError, Reason: plan.ErrNoQualifyingPlan.Error()}
	}
	if err != nil {
		return err
	}
	c.Selection = sel
	recordOffer(c.Record, sel.Offer)
	return nil
}

func cart(ctx context.Context, s *Sequencer, c *Client) error {
	if c.Selection.InCart {
		if err := s.dismissUpsell(ctx); err != nil {
			return err
		}
		_, err := s.resolver.Click(ctx, s.control(ControlKeepPlans))
		return err
	}
	if _, err := s.resolver.Click(ctx, s.control(ControlCartContinue)); err != nil {
		return err
	}
	return s.dismissUpsell(ctx)
}

func congratulations(ctx context.Context, s *Sequencer, c *Client) error {
	seen, err := s.resolver.Present(ctx, s.control(ControlCongratulations).Within(s.cfg.StageTimeout))
	if err != nil {
		return err
	}
	if !seen {
		return fmt.Errorf("no enrollment confirmation seen")
	}
	s.logger.Infof("%s: enrollment confirmed", c.Record.FullName)
	return nil
}
