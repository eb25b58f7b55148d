package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldAcceptOffer(t *testing.T) {
	tests := []struct {
		name     string
		offer    Offer
		approved ApprovalSet
		want     bool
	}{
		{
			name:     "zero premium approved carrier",
			offer:    Offer{Carrier: Blue, CarrierName: "blue", Premium: FromCents(0)},
			approved: NewApprovalSet(Blue, Aetna),
			want:     true,
		},
		{
			name:     "one cent premium",
			offer:    Offer{Carrier: Blue, CarrierName: "blue", Premium: FromCents(1)},
			approved: NewApprovalSet(Blue, Aetna),
			want:     false,
		},
		{
			name:     "unapproved carrier",
			offer:    Offer{Carrier: "unitedhealth", CarrierName: "unitedhealth", Premium: FromCents(0)},
			approved: NewApprovalSet(Blue),
			want:     false,
		},
		{
			name:     "unresolved premium",
			offer:    Offer{Carrier: Oscar, CarrierName: "Oscar", Premium: Unresolved},
			approved: NewApprovalSet(Oscar),
			want:     false,
		},
		{
			name:     "variant name",
			offer:    Offer{Carrier: Blue, CarrierName: "Blue Cross and Blue Shield of Texas", Premium: FromCents(0)},
			approved: NewApprovalSet(Blue),
			want:     true,
		},
		{
			name:     "carrier id only",
			offer:    Offer{Carrier: Oscar, Premium: FromCents(0)},
			approved: NewApprovalSet(Oscar),
			want:     true,
		},
		{
			name:     "name prefixing an approved carrier",
			offer:    Offer{Carrier: "health", CarrierName: "Health Net", Premium: FromCents(0)},
			approved: NewApprovalSet(Healthfirst),
			want:     false,
		},
		{
			name:     "unknown carrier",
			offer:    Offer{Premium: FromCents(0)},
			approved: NewApprovalSet(Oscar),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAcceptOffer(tt.offer, tt.approved))
		})
	}
}
