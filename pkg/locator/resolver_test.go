package locator

import (
	"context"
	"errors"
	"testing"

	"github.com/entrhq/renewbot/pkg/browser"
	"github.com/entrhq/renewbot/pkg/browser/browsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) (*Resolver, *browsertest.Page, *browsertest.Session) {
	t.Helper()
	page := browsertest.NewPage("https://example.test/clients")
	session := browsertest.NewSession(page)
	return New(session, Options{Attempts: 3, RetryInterval: 0}, nil), page, session
}

var continueTarget = NewTarget("continue",
	ID("page-nav-on-next-btn", "next button"),
	XPath("//button[normalize-space()='Continue']", "continue text"),
	CSS("button[type='submit']", "submit"),
)

func TestResolver_FallsThroughToLaterCandidate(t *testing.T) {
	r, page, _ := newResolver(t)
	btn := page.Add(continueTarget.Candidates[1].Selector(), browsertest.NewElement("Continue"))

	match, err := r.Click(context.Background(), continueTarget)
	require.NoError(t, err)

	assert.Equal(t, "continue text", match.Candidate.Label)
	assert.Equal(t, 1, btn.ClickCount())
	assert.Equal(t, 1, page.Looked(continueTarget.Candidates[0].Selector()))
	assert.Equal(t, 0, page.Looked(continueTarget.Candidates[2].Selector()))
}

func TestResolver_RetriesSameCandidateWhenStale(t *testing.T) {
	r, page, _ := newResolver(t)
	btn := browsertest.NewElement("Continue")
	btn.StaleFor = 2
	page.Add(continueTarget.Candidates[0].Selector(), btn)

	match, err := r.Click(context.Background(), continueTarget)
	require.NoError(t, err)

	assert.Equal(t, 3, match.Attempt)
	assert.Equal(t, 1, btn.ClickCount())
	assert.Equal(t, 3, page.Looked(continueTarget.Candidates[0].Selector()))
	assert.Equal(t, 0, page.Looked(continueTarget.Candidates[1].Selector()))
}

func TestResolver_StaleBeyondBudgetFallsThrough(t *testing.T) {
	r, page, _ := newResolver(t)
	first := browsertest.NewElement("Continue")
	first.StaleFor = 10
	page.Add(continueTarget.Candidates[0].Selector(), first)
	second := page.Add(continueTarget.Candidates[2].Selector(), browsertest.NewElement("Submit"))

	match, err := r.Click(context.Background(), continueTarget)
	require.NoError(t, err)

	assert.Equal(t, "submit", match.Candidate.Label)
	assert.Equal(t, 0, first.ClickCount())
	assert.Equal(t, 1, second.ClickCount())
	assert.Equal(t, 3, page.Looked(continueTarget.Candidates[0].Selector()))
}

func TestResolver_DisabledElementIsNotInteractable(t *testing.T) {
	r, page, _ := newResolver(t)
	disabled := browsertest.NewElement("Continue")
	disabled.Disabled = true
	page.Add(continueTarget.Candidates[0].Selector(), disabled)

	_, err := r.Click(context.Background(), continueTarget)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	assert.Equal(t, 0, disabled.ClickCount())

	// Presence alone does not require the element to be enabled.
	found, err := r.Present(context.Background(), continueTarget.Requiring(RequirePresent))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestResolver_DefinitiveNotFound(t *testing.T) {
	r, _, _ := newResolver(t)

	_, err := r.Find(context.Background(), continueTarget)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNotFound)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "continue", nf.Target)
	assert.Equal(t, 3, nf.Tried)

	found, err := r.Present(context.Background(), continueTarget)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestResolver_ActionFailureRetriesThenFallsThrough(t *testing.T) {
	r, page, _ := newResolver(t)
	page.Add(continueTarget.Candidates[0].Selector(), browsertest.NewElement("Continue"))
	page.Add(continueTarget.Candidates[1].Selector(), browsertest.NewElement("Continue"))

	calls := map[string]int{}
	match, err := r.Act(context.Background(), continueTarget, func(el browser.Element) error {
		text, _ := el.Text()
		calls[text]++
		if calls[text] <= 3 {
			return errors.New("intercepted")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "continue text", match.Candidate.Label)
}

func TestResolver_SessionLostIsReturnedImmediately(t *testing.T) {
	r, page, _ := newResolver(t)
	page.Close()

	_, err := r.Click(context.Background(), continueTarget)
	assert.ErrorIs(t, err, browser.ErrSessionLost)

	_, err = r.Present(context.Background(), continueTarget)
	assert.ErrorIs(t, err, browser.ErrSessionLost)
}

func TestResolver_ContextCancelled(t *testing.T) {
	r, page, _ := newResolver(t)
	page.Add(continueTarget.Candidates[0].Selector(), browsertest.NewElement("Continue"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Click(ctx, continueTarget)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolver_FindAll(t *testing.T) {
	r, page, _ := newResolver(t)
	cards := NewTarget("cards", CSS("div.plan-card", "plan card"), CSS("article", "article"))
	page.Add(browser.CSS("article"), browsertest.NewElement("a"))
	page.Add(browser.CSS("article"), browsertest.NewElement("b"))

	els, err := r.FindAll(context.Background(), cards)
	require.NoError(t, err)
	assert.Len(t, els, 2)
}

func TestTarget_With(t *testing.T) {
	target := NewTarget("advanced-actions",
		XPath("//tbody/tr[%d]/td[10]//button[@aria-label='Select Advanced Action']", "row button"),
		CSS("button.advanced", "no verbs"),
	)

	row := target.With(4)
	assert.Equal(t, "//tbody/tr[4]/td[10]//button[@aria-label='Select Advanced Action']", row.Candidates[0].Query)
	assert.Equal(t, "button.advanced", row.Candidates[1].Query)
	assert.Equal(t, "advanced-actions[4]", row.Name)
	assert.Equal(t, "//tbody/tr[%d]/td[10]//button[@aria-label='Select Advanced Action']", target.Candidates[0].Query)
}
