package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/browser/browsertest"
	"github.com/entrhq/renewbot/pkg/control"
	"github.com/entrhq/renewbot/pkg/plan"
	"github.com/entrhq/renewbot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	listURL  = "https://example.test/clients"
	renewURL = "https://example.test/renew"
	year     = 2026

	zeroOscar   = `<div><h2 class="carrier">Oscar</h2><h3>Oscar Bronze Classic</h3><var data-var="dollars">$0.00</var></div>`
	pricedOscar = `<div><h2 class="carrier">Oscar</h2><h3>Oscar Silver Saver</h3><var data-var="dollars">$52.00</var></div>`
)

func testConfig() RunConfiguration {
	return RunConfiguration{
		Approved:         plan.NewApprovalSet(plan.Oscar),
		RenewalYear:      year,
		ListURL:          listURL,
		Attempts:         1,
		CandidateTimeout: time.Millisecond,
		RetryInterval:    time.Millisecond,
		ShortTimeout:     time.Millisecond,
		StageTimeout:     time.Millisecond,
		TabDetectTimeout: 20 * time.Millisecond,
		DownloadTimeout:  time.Millisecond,
		SettleDelay:      time.Millisecond,
		PollInterval:     time.Millisecond,
	}
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
}

type recordingHider struct {
	rows  []int
	names []string
}

func (h *recordingHider) Hide(_ context.Context, row int, fullName string) error {
	h.rows = append(h.rows, row)
	h.names = append(h.names, fullName)
	return nil
}

type scriptedSurface struct {
	decisions []control.Decision
	calls     int
}

func (s *scriptedSurface) CheckSafePoint(context.Context) control.Decision {
	defer func() { s.calls++ }()
	if s.calls < len(s.decisions) {
		return s.decisions[s.calls]
	}
	return control.Continue
}

type fakeClipboard struct {
	text string
	err  error
}

func (c fakeClipboard) ReadAll() (string, error) { return c.text, c.err }

// add registers el under the first candidate of a control.
func add(page *browsertest.Page, name string, el *browsertest.Element, args ...any) *browsertest.Element {
	target := DefaultControls().Get(name)
	if len(args) > 0 {
		target = target.With(args...)
	}
	return page.Add(target.Candidates[0].Selector(), el)
}

func remove(page *browsertest.Page, name string) {
	page.Remove(DefaultControls().Get(name).Candidates[0].Selector())
}

// renewal is a renewal flow that takes the short path to a plan offer.
type renewal struct {
	page      *browsertest.Page
	consent   []*browsertest.Element
	storage   *browsertest.Element
	signature *browsertest.Element
	review    *browsertest.Element
	enroll    *browsertest.Element
	next      *browsertest.Element
}

func populate(p *browsertest.Page, offerHTML string) *renewal {
	r := &renewal{page: p}
	add(p, ControlContinueWithPlan, browsertest.NewElement("Continue with plan"))
	for _, name := range []string{ControlConsentData, ControlConsentTruth} {
		box := browsertest.NewElement("")
		box.ToggleOnClick = true
		r.consent = append(r.consent, add(p, name, box))
	}
	r.storage = add(p, ControlConsentStorage, browsertest.NewElement("Store consent outside of HealthSherpa"))
	r.next = add(p, ControlNext, browsertest.NewElement("Next"))
	add(p, ControlGenderCell, browsertest.NewElement("Male"))
	add(p, ControlSkipToEnd, browsertest.NewElement("Skip to the end"))
	r.signature = add(p, ControlSignatureInput, browsertest.NewElement(""))
	add(p, ControlEligibilityPage, browsertest.NewElement("Review eligibility results"))
	add(p, ControlEligibleMember, browsertest.NewElement("Eligible to enroll"))
	r.review = add(p, ControlReviewPlan, browsertest.NewElement("Review plan"))
	panel := browsertest.NewElement("")
	panel.HTML = offerHTML
	add(p, plan.ControlOfferPanel, panel)
	r.enroll = add(p, ControlEnroll, browsertest.NewElement("Enroll in this plan"))
	add(p, ControlCongratulations, browsertest.NewElement("Congratulations!"))
	return r
}

func newRenewal(offerHTML string) *renewal {
	return populate(browsertest.NewPage(renewURL), offerHTML)
}

// harness is a roster tab whose renewal links open queued tabs.
type harness struct {
	roster  *browsertest.Page
	session *browsertest.Session
	pending []*browsertest.Page
	hider   *recordingHider
	surface *scriptedSurface
	events  []*types.RunEvent
}

func newHarness() *harness {
	h := &harness{
		roster:  browsertest.NewPage(listURL),
		hider:   &recordingHider{},
		surface: &scriptedSurface{},
	}
	h.session = browsertest.NewSession(h.roster)

	link := add(h.roster, ControlRenewLink, browsertest.NewElement("Renew for 2026"), year)
	anchor := browsertest.NewElement("")
	anchor.Attrs["href"] = renewURL
	link.Add(DefaultControls().Get(ControlRenewLinkAncestor).Candidates[0].Selector(), anchor)

	h.roster.Script = func(script string, _ any) (any, error) {
		if strings.Contains(script, "window.open") && len(h.pending) > 0 {
			next := h.pending[0]
			h.pending = h.pending[1:]
			h.session.Open(next)
		}
		return nil, nil
	}
	return h
}

func (h *harness) client(row int, r *renewal) {
	add(h.roster, ControlAdvancedActions, browsertest.NewElement("Actions"), row)
	h.pending = append(h.pending, r.page)
}

func (h *harness) sequencer(cfg RunConfiguration, opts ...Option) *Sequencer {
	opts = append([]Option{
		WithEmitter(func(e *types.RunEvent) { h.events = append(h.events, e) }),
		WithClipboard(fakeClipboard{err: errors.New("no clipboard")}),
		WithClock(fixedClock),
	}, opts...)
	return New(cfg, h.session, h.surface, h.hider, opts...)
}

func (h *harness) count(typ types.RunEventType, stage string) int {
	n := 0
	for _, e := range h.events {
		if e.Type == typ && (stage == "" || e.Stage == stage) {
			n++
		}
	}
	return n
}

func TestSequencer_RenewsRoster(t *testing.T) {
	h := newHarness()
	a := newRenewal(zeroOscar)
	b := newRenewal(pricedOscar)
	add(b.page, ControlChangePlans, browsertest.NewElement("Change plans"))
	card := browsertest.NewElement("")
	card.HTML = pricedOscar
	add(b.page, plan.ControlResultCard, card)
	card.Add(DefaultControls().Get(plan.ControlCardAction).Candidates[0].Selector(), browsertest.NewElement("Add to cart"))
	h.client(1, a)
	h.client(2, b)

	seq := h.sequencer(testConfig())
	first := types.NewClientRecord("Ana Diaz", 1)
	second := types.NewClientRecord("Ben Cole", 2)
	require.NoError(t, seq.Process(context.Background(), first))
	require.NoError(t, seq.Process(context.Background(), second))

	assert.Equal(t, types.OutcomeCompleted, first.Outcome)
	assert.Empty(t, first.Reason)
	assert.Equal(t, "Oscar", first.Carrier)
	assert.Equal(t, "Oscar Bronze Classic", first.Plan)
	assert.Equal(t, "$0.00", first.Premium)
	assert.Equal(t, []string{"Ana Diaz"}, a.signature.Fills)
	assert.Equal(t, 1, a.enroll.ClickCount())
	assert.Len(t, first.AttemptID, 8)

	assert.Equal(t, types.OutcomeError, second.Outcome)
	assert.Equal(t, "no qualifying plan found", second.Reason)
	assert.Equal(t, "$52.00", second.Premium)
	assert.Equal(t, 0, b.enroll.ClickCount())
	assert.NotEqual(t, first.AttemptID, second.AttemptID)

	assert.Equal(t, []int{1, 2}, h.hider.rows)
	assert.True(t, a.page.IsClosed())
	assert.True(t, b.page.IsClosed())
	assert.Equal(t, h.session.Main(), h.session.Active())
	assert.Equal(t, 2, h.count(types.EventTypeClientFinished, ""))
}

func TestSequencer_StoredConsentStillChecksBoxes(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	add(r.page, ControlConsentBanner, browsertest.NewElement("You have already provided consent"))
	h.client(1, r)

	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
	require.Len(t, r.consent, 2)
	for _, box := range r.consent {
		assert.True(t, box.Checked)
	}
	assert.Positive(t, r.storage.ClickCount())
	assert.Equal(t, 1, h.count(types.EventTypeStageCompleted, StageConsent))
}

func TestSequencer_StopAtFirstSafePoint(t *testing.T) {
	h := newHarness()
	h.client(1, newRenewal(zeroOscar))
	h.surface.decisions = []control.Decision{control.Stop}

	rec := types.NewClientRecord("Ana Diaz", 1)
	err := h.sequencer(testConfig()).Process(context.Background(), rec)

	require.ErrorIs(t, err, control.ErrStopped)
	assert.Equal(t, types.OutcomeError, rec.Outcome)
	assert.Equal(t, "stopped by operator", rec.Reason)
	assert.Equal(t, []int{1}, h.hider.rows)
	assert.Equal(t, 0, h.count(types.EventTypeStageStarted, ""))
}

func TestSequencer_SkipClosesRenewalTab(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	h.client(1, r)
	h.surface.decisions = []control.Decision{control.Continue, control.Skip}

	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeSkippedByOperator, rec.Outcome)
	assert.True(t, r.page.IsClosed())
	assert.Equal(t, h.session.Main(), h.session.Active())
	assert.Equal(t, []int{1}, h.hider.rows)
	assert.Zero(t, h.count(types.EventTypeStageStarted, StageContinueWithPlan))
}

func TestSequencer_RequiredStageFailureEndsClient(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	remove(r.page, ControlContinueWithPlan)
	h.client(1, r)

	cfg := testConfig()
	cfg.ScreenshotDir = t.TempDir()
	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(cfg).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeError, rec.Outcome)
	assert.True(t, strings.HasPrefix(rec.Reason, StageContinueWithPlan+": "), rec.Reason)
	assert.Zero(t, h.count(types.EventTypeStageStarted, StageConsent))
	assert.Equal(t, 1, h.count(types.EventTypeStageFailed, StageContinueWithPlan))
	assert.True(t, r.page.IsClosed())

	want := filepath.Join(cfg.ScreenshotDir, "20261019_093000_Ana_Diaz_"+rec.AttemptID+".png")
	assert.Equal(t, []string{want}, r.page.Screenshots)
	assert.FileExists(t, want)
	assert.Equal(t, []int{1}, h.hider.rows)
}

func TestSequencer_BestEffortStageContinues(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	remove(r.page, ControlCongratulations)
	h.client(1, r)

	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
	assert.Equal(t, 1, h.count(types.EventTypeStageSkipped, StageCongratulations))
}

func TestSequencer_SessionLostEndsRun(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	r.review.OnClick = func() error {
		r.page.Close()
		return nil
	}
	h.client(1, r)

	rec := types.NewClientRecord("Ana Diaz", 1)
	err := h.sequencer(testConfig()).Process(context.Background(), rec)

	require.ErrorIs(t, err, browser.ErrSessionLost)
	assert.Equal(t, types.OutcomeError, rec.Outcome)
	assert.True(t, strings.HasPrefix(rec.Reason, StageReviewPlan+": "), rec.Reason)
	assert.Equal(t, []int{1}, h.hider.rows)
}

func TestSequencer_MainTabLostSurfacesAfterOutcome(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	r.enroll.OnClick = func() error {
		h.roster.Close()
		return nil
	}
	h.client(1, r)

	rec := types.NewClientRecord("Ana Diaz", 1)
	err := h.sequencer(testConfig()).Process(context.Background(), rec)

	require.ErrorIs(t, err, browser.ErrSessionLost)
	assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
}

func TestSequencer_CancelledContext(t *testing.T) {
	h := newHarness()
	h.client(1, newRenewal(zeroOscar))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := types.NewClientRecord("Ana Diaz", 1)
	err := New(testConfig(), h.session, control.New(), h.hider).Process(ctx, rec)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.OutcomeError, rec.Outcome)
	assert.Equal(t, "run cancelled", rec.Reason)
	assert.Equal(t, []int{1}, h.hider.rows)
}

func TestSequencer_SameTabTopology(t *testing.T) {
	tests := []struct {
		name      string
		backWorks bool
		visited   []string
	}{
		{name: "back returns to roster", backWorks: true},
		{name: "roster reopened", visited: []string{listURL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roster := browsertest.NewPage(listURL)
			session := browsertest.NewSession(roster)
			add(roster, ControlAdvancedActions, browsertest.NewElement("Actions"), 1)
			link := add(roster, ControlRenewLink, browsertest.NewElement("Renew for 2026"), year)
			link.OnClick = func() error {
				roster.SetURL(renewURL)
				return nil
			}
			populate(roster, zeroOscar)
			if tt.backWorks {
				roster.OnBack = func() { roster.SetURL(listURL) }
			}

			hider := &recordingHider{}
			seq := New(testConfig(), session, &scriptedSurface{}, hider, WithClipboard(fakeClipboard{}))
			rec := types.NewClientRecord("Ana Diaz", 1)
			require.NoError(t, seq.Process(context.Background(), rec))

			assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
			assert.Equal(t, 1, roster.Backs)
			assert.Equal(t, tt.visited, roster.Visited)
			assert.Equal(t, []int{1}, hider.rows)
		})
	}
}

func TestSequencer_RenewalThatNeverOpens(t *testing.T) {
	h := newHarness()
	add(h.roster, ControlAdvancedActions, browsertest.NewElement("Actions"), 1)

	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeError, rec.Outcome)
	assert.Contains(t, rec.Reason, "renewal flow did not open")
	assert.Equal(t, []int{1}, h.hider.rows)
}

func TestSequencer_Gender(t *testing.T) {
	tests := []struct {
		name      string
		cell      string
		want      types.Gender
		defaulted bool
	}{
		{name: "male", cell: "Male", want: types.GenderMale},
		{name: "female", cell: "Female", want: types.GenderFemale},
		{name: "missing", want: types.GenderMale, defaulted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			r := newRenewal(zeroOscar)
			remove(r.page, ControlGenderCell)
			if tt.cell != "" {
				add(r.page, ControlGenderCell, browsertest.NewElement(tt.cell))
			}
			h.client(1, r)

			rec := types.NewClientRecord("Ana Diaz", 1)
			require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

			assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
			assert.Equal(t, tt.want, rec.Gender)
			assert.Equal(t, tt.defaulted, rec.GenderDefaulted)
		})
	}
}

func TestSequencer_PregnancyQuestionsAnsweredNo(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	remove(r.page, ControlGenderCell)
	add(r.page, ControlGenderCell, browsertest.NewElement("Female"))
	add(r.page, ControlPregnancyHeading, browsertest.NewElement("Is anyone pregnant?"))
	add(r.page, ControlFosterHeading, browsertest.NewElement("Was anyone in foster care?"))
	first := add(r.page, ControlAnswerNo, browsertest.NewElement("No"))
	second := add(r.page, ControlAnswerNo, browsertest.NewElement("No"))
	h.client(1, r)

	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
	assert.Equal(t, 1, first.ClickCount())
	assert.Equal(t, 1, second.ClickCount())
	assert.Equal(t, 1, h.count(types.EventTypeStageCompleted, StagePregnancy))
}

func TestSequencer_EligibilityReview(t *testing.T) {
	tests := []struct {
		name       string
		followups  string
		members    int
		want       types.Outcome
		wantReason string
	}{
		{name: "no followups", followups: "Eligible to enroll", members: 1, want: types.OutcomeCompleted},
		{name: "verification needed", followups: "DMI: verify citizenship", members: 1, want: types.OutcomeSkippedManual, wantReason: "dmi"},
		{name: "documents requested", followups: "Documents requested", members: 1, want: types.OutcomeSkippedManual, wantReason: "document"},
		{name: "family", members: 2, want: types.OutcomeSkippedFamily, wantReason: "2 household members"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			r := newRenewal(zeroOscar)
			if tt.followups != "" {
				add(r.page, ControlFollowupsCell, browsertest.NewElement(tt.followups))
			}
			for i := 1; i < tt.members; i++ {
				add(r.page, ControlEligibleMember, browsertest.NewElement("Eligible to enroll"))
			}
			h.client(1, r)

			cfg := testConfig()
			cfg.ScreenshotDir = t.TempDir()
			rec := types.NewClientRecord("Ana Diaz", 1)
			require.NoError(t, h.sequencer(cfg).Process(context.Background(), rec))

			assert.Equal(t, tt.want, rec.Outcome)
			assert.Contains(t, rec.Reason, tt.wantReason)
			if tt.want != types.OutcomeCompleted {
				assert.Zero(t, r.enroll.ClickCount())
				assert.Empty(t, r.page.Screenshots)
			}
			assert.Equal(t, []int{1}, h.hider.rows)
		})
	}
}

func TestSequencer_InvalidLetterIsOnlyAWarning(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	add(r.page, ControlDownloadLetter, browsertest.NewElement("Download Eligibility Letter"))
	r.page.DownloadData = []byte("not a pdf")
	r.page.DownloadName = "letter.pdf"
	h.client(1, r)

	cfg := testConfig()
	cfg.DownloadDir = t.TempDir()
	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(cfg).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
	assert.FileExists(t, filepath.Join(cfg.DownloadDir, rec.AttemptID, "letter.pdf"))
	assert.Equal(t, 1, h.count(types.EventTypeStageSkipped, StageEligibilityLetter))
}

func TestSequencer_CrashedPlanPage(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	r.page.SetText("Application error: a client-side exception has occurred")
	h.client(1, r)

	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeError, rec.Outcome)
	assert.True(t, strings.HasPrefix(rec.Reason, StageReviewPlan+": "), rec.Reason)
	assert.Zero(t, r.enroll.ClickCount())
}

func TestSequencer_SignatureText(t *testing.T) {
	tests := []struct {
		name      string
		copy      bool
		clipboard string
		want      string
	}{
		{name: "copied signature", copy: true, clipboard: "Ana M Diaz", want: "Ana M Diaz"},
		{name: "stale clipboard", copy: true, clipboard: "Ben Cole", want: "Ana Diaz"},
		{name: "no copy control", clipboard: "Ana M Diaz", want: "Ana Diaz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			r := newRenewal(zeroOscar)
			if tt.copy {
				add(r.page, ControlSignatureCopy, browsertest.NewElement("Copy"))
			}
			h.client(1, r)

			rec := types.NewClientRecord("Ana Diaz", 1)
			seq := h.sequencer(testConfig(), WithClipboard(fakeClipboard{text: tt.clipboard}))
			require.NoError(t, seq.Process(context.Background(), rec))

			assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
			assert.Equal(t, []string{tt.want}, r.signature.Fills)
		})
	}
}

func TestSequencer_SignatureRetriedUntilEligibilityLoads(t *testing.T) {
	h := newHarness()
	r := newRenewal(zeroOscar)
	remove(r.page, ControlEligibilityPage)
	fills := 0
	r.next.OnClick = func() error {
		if len(r.signature.Fills) > fills {
			fills = len(r.signature.Fills)
			if fills == 2 {
				add(r.page, ControlEligibilityPage, browsertest.NewElement("Review eligibility results"))
			}
		}
		return nil
	}
	h.client(1, r)

	rec := types.NewClientRecord("Ana Diaz", 1)
	require.NoError(t, h.sequencer(testConfig()).Process(context.Background(), rec))

	assert.Equal(t, types.OutcomeCompleted, rec.Outcome)
	assert.Len(t, r.signature.Fills, 2)
	assert.Equal(t, 2, h.count(types.EventTypeStageStarted, StageSignature))
}

func TestScreenshotName(t *testing.T) {
	tests := []struct {
		name string
		full string
		want string
	}{
		{name: "plain", full: "Ana Diaz", want: "20261019_093000_Ana_Diaz_abc123.png"},
		{name: "punctuation", full: "Mary-Jo O'Neil", want: "20261019_093000_Mary-Jo_O_Neil_abc123.png"},
		{name: "empty", full: "", want: "20261019_093000_client_abc123.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScreenshotName("20261019_093000", tt.full, "abc123"))
		})
	}
}

func TestValidateLetter(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "letter.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pdf"), 0600))

	_, err := ValidateLetter(garbage)
	assert.Error(t, err)

	_, err = ValidateLetter(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}
