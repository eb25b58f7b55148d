package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOffer_IgnoresStruckPrice(t *testing.T) {
	doc := `
<section>
  <h2 class="carrier">Oscar</h2>
  <h3>Oscar Bronze Classic</h3>
  <div class="_mt6_wndsr">
    <span class="price-strikethrough"><var data-var="dollars">$45.00</var></span>
    <var data-var="dollars">$0.00</var>
  </div>
</section>`

	offer := ExtractOffer(doc)
	assert.True(t, offer.Premium.IsZero(), offer.Premium.String())
	assert.Equal(t, SourceCurrentPrice, offer.Source)
	assert.Equal(t, Oscar, offer.Carrier)
	assert.Equal(t, "Oscar Bronze Classic", offer.PlanName)
}

func TestExtractOffer_Strategies(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantCents  int64
		wantSource string
	}{
		{
			name:       "dollars and cents widgets",
			doc:        `<div class="current-price"><var data-var="dollars">$12</var><var data-var="cents">.50</var></div>`,
			wantCents:  1250,
			wantSource: SourceCurrentPrice,
		},
		{
			name:       "premium label sibling",
			doc:        `<div><span>Premium</span><del>$45.00</del><strong>$0.00</strong></div>`,
			wantCents:  0,
			wantSource: SourcePremiumLabel,
		},
		{
			name:       "premium tax credit label is not a premium",
			doc:        `<div><span>Premium tax credit</span><b>$310.00</b></div><p><s>$80.00/mo</s></p><p>$3.10/mo</p>`,
			wantCents:  310,
			wantSource: SourcePerMonth,
		},
		{
			name:       "per month outside strike",
			doc:        `<p style="text-decoration: line-through">$80.00/mo</p><p><b>$0.00</b>/mo</p>`,
			wantCents:  0,
			wantSource: SourcePerMonth,
		},
		{
			name: "plan summary rejects out of range",
			doc: `<section><h2>Plan summary</h2>
				<div><var data-var="dollars">$7,500.00</var></div>
				<div><var data-var="dollars">$19.99</var></div></section>`,
			wantCents:  1999,
			wantSource: SourcePlanSummary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := ExtractOffer(tt.doc)
			assert.True(t, offer.Premium.Resolved())
			assert.Equal(t, tt.wantCents, offer.Premium.Cents())
			assert.Equal(t, tt.wantSource, offer.Source)
		})
	}
}

func TestExtractOffer_UnresolvedWhenOnlyStruckPrices(t *testing.T) {
	doc := `<div class="_mt6_wndsr"><s><var data-var="dollars">$45.00</var></s></div><p class="previous-price">$45.00/mo</p>`

	offer := ExtractOffer(doc)
	assert.False(t, offer.Premium.Resolved())
	assert.False(t, offer.Premium.IsZero())
	assert.Empty(t, offer.Source)
}

func TestExtractOffer_CarrierSources(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Carrier
		raw  string
	}{
		{name: "carrier name div", doc: `<div class="carrier-name">Blue Cross and Blue Shield of Texas</div>`, want: Blue, raw: "Blue Cross and Blue Shield of Texas"},
		{name: "logo alt", doc: `<img src="x.png" alt="Molina Marketplace logo">`, want: Molina, raw: "Molina Marketplace"},
		{name: "issuer logo", doc: `<img class="issuer-logo" alt="Cigna Healthcare">`, want: Cigna, raw: "Cigna Healthcare"},
		{name: "none", doc: `<p>nothing here</p>`, want: "", raw: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := ExtractOffer(tt.doc)
			assert.Equal(t, tt.want, offer.Carrier)
			assert.Equal(t, tt.raw, offer.CarrierName)
		})
	}
}

func TestExtractOffer_PlanNameRules(t *testing.T) {
	doc := `<h3>Plan summary</h3><h4>Plan</h4><h3>Ambetter Value Silver With A Very Long Marketing Name Attached</h3>`
	offer := ExtractOffer(doc)
	assert.Equal(t, "Ambetter Value Silver With A Very Long Marketing N", offer.PlanName)
	assert.Len(t, []rune(offer.PlanName), 50)

	named := ExtractOffer(`<h3>Plan details</h3><span class="plan-name">Oscar Silver Simple</span>`)
	assert.Equal(t, "Oscar Silver Simple", named.PlanName)
}
