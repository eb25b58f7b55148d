package plan

// ShouldAcceptOffer accepts an offer only when its premium is exactly $0.00
// and its carrier is approved. An unresolved premium is never accepted.
func ShouldAcceptOffer(offer Offer, approved ApprovalSet) bool {
	if !offer.Premium.IsZero() {
		return false
	}
	name := offer.CarrierName
	if name == "" {
		name = string(offer.Carrier)
	}
	return approved.Contains(name)
}
