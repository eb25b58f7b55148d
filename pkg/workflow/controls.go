package workflow

import (
	"github.com/entrhq/renewbot/pkg/locator"
	"github.com/entrhq/renewbot/pkg/plan"
)

// Control names of the renewal flow. Each can be overridden from the run
// configuration file.
const (
	ControlAdvancedActions   = "advanced-actions"
	ControlRenewLink         = "renew-link"
	ControlContinueWithPlan  = "continue-with-plan"
	ControlConsentBanner     = "consent-banner"
	ControlConsentData       = "consent-data"
	ControlConsentTruth      = "consent-truth"
	ControlConsentStorage    = "consent-storage"
	ControlNext              = "next"
	ControlGenderCell        = "gender-cell"
	ControlRelationships     = "relationships-heading"
	ControlPregnancyHeading  = "pregnancy-heading"
	ControlFosterHeading     = "foster-heading"
	ControlAnswerNo          = "answer-no"
	ControlAnswerYes         = "answer-yes"
	ControlSkipToEnd         = "skip-to-end"
	ControlAddressHeading    = "address-heading"
	ControlDialogContinue    = "dialog-continue"
	ControlCoverageNo        = "existing-coverage-no"
	ControlFosterNo          = "foster-no"
	ControlSignatureInput    = "signature-input"
	ControlSignatureCopy     = "signature-copy"
	ControlEligibilityPage   = "eligibility-page"
	ControlFollowupsCell     = "followups-cell"
	ControlEligibleMember    = "eligible-member"
	ControlDownloadLetter    = "download-letter"
	ControlReviewPlan        = "review-plan"
	ControlConfirmPlanPage   = "confirm-plan-page"
	ControlSilverPopup       = "silver-popup"
	ControlEnroll            = "enroll"
	ControlChangePlans       = "change-plans"
	ControlCartContinue      = "cart-continue"
	ControlKeepPlans         = "keep-plans"
	ControlCongratulations   = "congratulations"
	ControlRosterListMarker  = "roster-list"
	ControlRenewLinkAncestor = "renew-link-anchor"
)

var (
	nextButton    = locator.ID("page-nav-on-next-btn", "next button id")
	nextButtonXP  = locator.XPath("//button[@id='page-nav-on-next-btn']", "next button xpath")
	presentOnly   = locator.RequirePresent
	textContinue  = locator.XPath("//button[normalize-space()='Continue']", "continue text")
	submitProceed = locator.XPath("//button[@type='submit' and contains(normalize-space(), 'Continue')]", "submit continue")
)

// DefaultControls returns the control catalog of the renewal flow, including
// the plan pages.
func DefaultControls() locator.Catalog {
	flow := locator.Catalog{
		ControlAdvancedActions: locator.NewTarget(ControlAdvancedActions,
			locator.XPath("//tbody/tr[%d]/td[10]//button[@aria-label='Select Advanced Action']", "row actions column"),
			locator.XPath("//tbody/tr[%d]//button[contains(@class, 'advanced')]", "row advanced class"),
			locator.XPath("(//button[@aria-label='Select Advanced Action'])[%d]", "nth advanced action"),
		),
		ControlRenewLink: locator.NewTarget(ControlRenewLink,
			locator.XPath("//p[normalize-space()='Renew for %d']", "renew paragraph"),
			locator.XPath("//a[contains(normalize-space(), 'Renew for %d')]", "renew link"),
			locator.XPath("//*[self::a or self::button or self::li][contains(normalize-space(), 'Renew for %d')]", "renew menu item"),
		),
		ControlRenewLinkAncestor: locator.NewTarget(ControlRenewLinkAncestor,
			locator.XPath("ancestor::a[1]", "enclosing anchor"),
		),
		ControlContinueWithPlan: locator.NewTarget(ControlContinueWithPlan,
			locator.XPath("//button[normalize-space()='Continue with plan']", "exact text"),
			locator.XPath("//button[contains(., 'Continue with plan')]", "contains text"),
			submitProceed,
		),
		ControlConsentBanner: locator.NewTarget(ControlConsentBanner,
			locator.XPath("//*[contains(text(), 'already provided consent') or contains(text(), 'view documents where to retrieve')]", "consent stored banner"),
		).Requiring(presentOnly),
		ControlConsentData: locator.NewTarget(ControlConsentData,
			locator.CSS("input[name='consentData']", "name"),
			locator.CSS("#consentData", "id"),
			locator.XPath("//*[@id='consentData']/ancestor::label//input", "label of id"),
			locator.XPath("//label[contains(., 'I agree to have my information used')]//input[@type='checkbox']", "label text"),
		).Requiring(presentOnly),
		ControlConsentTruth: locator.NewTarget(ControlConsentTruth,
			locator.CSS("input[name='consentSep']", "name"),
			locator.XPath("//*[@id='consentSep']/ancestor::label//input", "label of id"),
			locator.XPath("//label[contains(., 'I understand that I')]//input[@type='checkbox']", "label text"),
			locator.CSS("#consentSep", "id"),
		).Requiring(presentOnly),
		ControlConsentStorage: locator.NewTarget(ControlConsentStorage,
			locator.XPath("//label[contains(., 'Store consent outside of HealthSherpa')]//input[@type='radio']", "label radio"),
			locator.CSS("input[type='radio'][value*='outside']", "radio value"),
			locator.CSS("button[aria-label='Store consent outside of HealthSherpa']", "aria label button"),
			locator.XPath("//button[contains(., 'Store consent outside')]", "button text"),
		).Requiring(presentOnly),
		ControlNext: locator.NewTarget(ControlNext,
			nextButton,
			nextButtonXP,
			submitProceed,
			textContinue,
		),
		ControlGenderCell: locator.NewTarget(ControlGenderCell,
			locator.XPath("//table[@title='primary person info']//tbody//tr//td[3]", "primary person sex column"),
		).Requiring(presentOnly),
		ControlRelationships: locator.NewTarget(ControlRelationships,
			locator.XPath("//*[contains(text(), 'Other relationships') or contains(text(), 'Additional Relationship Information')]", "heading"),
		).Requiring(presentOnly),
		ControlPregnancyHeading: locator.NewTarget(ControlPregnancyHeading,
			locator.XPath("//*[contains(text(), 'pregnant') or contains(text(), 'Pregnant')]", "heading"),
		).Requiring(presentOnly),
		ControlFosterHeading: locator.NewTarget(ControlFosterHeading,
			locator.XPath("//*[contains(text(), 'foster care') or contains(text(), 'Foster')]", "heading"),
		).Requiring(presentOnly),
		ControlAnswerNo: locator.NewTarget(ControlAnswerNo,
			locator.XPath("//button[@role='radio' and @aria-label='No']", "no radio button"),
		),
		ControlAnswerYes: locator.NewTarget(ControlAnswerYes,
			locator.XPath("//button[@aria-label='Yes' and @role='radio']", "yes radio button"),
		),
		ControlSkipToEnd: locator.NewTarget(ControlSkipToEnd,
			locator.XPath("//button[normalize-space()='Skip to the end']", "exact text"),
			locator.XPath("//button[contains(text(), 'Skip')]", "contains skip"),
		),
		ControlAddressHeading: locator.NewTarget(ControlAddressHeading,
			locator.XPath("//h2[contains(text(), 'address')]", "address modal heading"),
		).Requiring(presentOnly),
		ControlDialogContinue: locator.NewTarget(ControlDialogContinue,
			textContinue,
			locator.CSS("button[type='button'].MuiButton-containedPrimary", "primary dialog button"),
		),
		ControlCoverageNo: locator.NewTarget(ControlCoverageNo,
			locator.XPath("//input[@type='radio' and @value='no']", "no radio input"),
			locator.XPath("//button[@role='radio' and @aria-label='No']", "no radio button"),
		).Requiring(presentOnly),
		ControlFosterNo: locator.NewTarget(ControlFosterNo,
			locator.XPath("//button[@aria-label='No' and contains(., 'foster')]", "foster no"),
		),
		ControlSignatureInput: locator.NewTarget(ControlSignatureInput,
			locator.XPath("//input[@type='text' and (@id='signature' or contains(@name, 'signature') or contains(@placeholder, 'signature'))]", "signature attributes"),
			locator.XPath("//input[@type='text' and (contains(@id, 'signature') or contains(@name, 'signature'))]", "signature id fragment"),
		),
		ControlSignatureCopy: locator.NewTarget(ControlSignatureCopy,
			locator.XPath("//button[contains(@aria-label, 'copy') or contains(@aria-label, 'Copy') or contains(text(), 'Copy')]", "copy button"),
		),
		ControlEligibilityPage: locator.NewTarget(ControlEligibilityPage,
			locator.ID("followups_review", "followups section"),
			locator.XPath("//*[contains(text(), 'Review eligibility results') or contains(text(), 'Eligibility Results') or contains(text(), 'eligibility results')]", "heading"),
		).Requiring(presentOnly),
		ControlFollowupsCell: locator.NewTarget(ControlFollowupsCell,
			locator.XPath("//th[contains(text(), 'Followups')]/ancestor::table//tbody/tr[1]/td[3]", "followups column"),
			locator.XPath("//td[preceding-sibling::*[contains(text(), 'Followups')]]", "after followups label"),
			locator.XPath("//table//td[3]", "third column"),
			locator.CSS("table tbody tr td:nth-child(3)", "third column css"),
		).Requiring(presentOnly),
		ControlEligibleMember: locator.NewTarget(ControlEligibleMember,
			locator.XPath("//td[contains(text(), 'Eligible to enroll')]", "eligible cell"),
		).Requiring(presentOnly),
		ControlDownloadLetter: locator.NewTarget(ControlDownloadLetter,
			locator.XPath("//button[normalize-space()='Download Eligibility Letter']", "exact text"),
			locator.XPath("//button[contains(., 'Download Eligibility Letter')]", "contains text"),
			locator.XPath("//a[contains(text(), 'Download Eligibility Letter')]", "link"),
		),
		ControlReviewPlan: locator.NewTarget(ControlReviewPlan,
			locator.XPath("//button[normalize-space()='Review plan']", "exact text"),
			locator.XPath("//button[contains(text(), 'Review plan')]", "contains text"),
			nextButton,
		),
		ControlConfirmPlanPage: locator.NewTarget(ControlConfirmPlanPage,
			locator.XPath("//*[contains(text(), 'Confirm your plan') or contains(text(), 'Plan summary')]", "heading"),
		).Requiring(presentOnly),
		ControlSilverPopup: locator.NewTarget(ControlSilverPopup,
			locator.XPath("//button[normalize-space()='No thanks, continue with this plan']", "exact text"),
			locator.XPath("//button[contains(text(), 'No thanks')]", "contains text"),
		),
		ControlEnroll: locator.NewTarget(ControlEnroll,
			locator.XPath("//button[normalize-space()='Enroll in this plan']", "exact text"),
			locator.CSS("button[type='submit'][data-layer='enroll_in_application']", "enroll submit"),
			locator.XPath("//button[contains(., 'Proceed to checkout')]", "proceed to checkout"),
			locator.XPath("//button[normalize-space()='Continue to checkout']", "continue to checkout"),
			nextButton,
		),
		ControlChangePlans: locator.NewTarget(ControlChangePlans,
			locator.XPath("//a[normalize-space()='Change plans']", "exact text"),
			locator.XPath("//a[contains(., 'Change plans')]", "contains text"),
			locator.XPath("//button[contains(., 'Change plans')]", "button"),
		),
		ControlCartContinue: locator.NewTarget(ControlCartContinue,
			locator.XPath("//div[contains(@class, 'MuiDialog')]//button[contains(text(), 'Continue')]", "dialog continue"),
			textContinue,
		),
		ControlKeepPlans: locator.NewTarget(ControlKeepPlans,
			locator.XPath("//button[normalize-space()='Keep these plans']", "exact text"),
			locator.XPath("//button[contains(., 'Keep these plans')]", "contains text"),
		),
		ControlCongratulations: locator.NewTarget(ControlCongratulations,
			locator.XPath("//*[contains(text(), 'Congratulations') or contains(text(), 'Success') or contains(text(), 'enrolled')]", "confirmation text"),
		).Requiring(presentOnly),
		ControlRosterListMarker: locator.NewTarget(ControlRosterListMarker,
			locator.XPath("//tbody/tr[1]", "first roster row"),
		).Requiring(presentOnly),
	}
	return plan.DefaultControls().Merge(flow)
}
