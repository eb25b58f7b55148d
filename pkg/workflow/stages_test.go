package workflow

import (
	"testing"

	"github.com/entrhq/renewbot/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestParseGender(t *testing.T) {
	tests := []struct {
		text string
		want types.Gender
		ok   bool
	}{
		{text: "Male", want: types.GenderMale, ok: true},
		{text: " FEMALE ", want: types.GenderFemale, ok: true},
		{text: "Female (pregnant)", want: types.GenderFemale, ok: true},
		{text: "", want: types.GenderUnknown},
		{text: "Not provided", want: types.GenderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseGender(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestFollowupKeyword(t *testing.T) {
	tests := []struct {
		cell string
		want string
		ok   bool
	}{
		{cell: ""},
		{cell: "   "},
		{cell: "Eligible to enroll"},
		{cell: "Ready to enroll; documents on file"},
		{cell: "DMI", want: "dmi", ok: true},
		{cell: "Verification pending", want: "verif", ok: true},
		{cell: "Upload required", want: "required", ok: true},
		{cell: "Proof needed", want: "needed", ok: true},
		{cell: "Information request", want: "request", ok: true},
		{cell: "None"},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got, ok := FollowupKeyword(tt.cell)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCrashMarker(t *testing.T) {
	marker, ok := CrashMarker("This page isn’t working")
	assert.True(t, ok)
	assert.Equal(t, "this page isn't working", marker)

	marker, ok = CrashMarker("This page isn't working\nHTTP ERROR 500")
	assert.True(t, ok)
	assert.Equal(t, "this page isn't working", marker)

	marker, ok = CrashMarker("Request failed with status code 502")
	assert.True(t, ok)
	assert.Equal(t, "status code 5", marker)

	_, ok = CrashMarker("Confirm your plan")
	assert.False(t, ok)
}

func TestStages_Order(t *testing.T) {
	stages := Stages()
	index := make(map[string]int, len(stages))
	for i, st := range stages {
		_, dup := index[st.Name]
		assert.False(t, dup, st.Name)
		index[st.Name] = i
		assert.NotNil(t, st.Run, st.Name)
	}

	before := [][2]string{
		{StageOpenRenewal, StageConsent},
		{StageConsent, StageSignature},
		{StageSignature, StageFollowups},
		{StageFamilyPolicy, StagePlanDecision},
		{StagePlanDecision, StageEnrollDirect},
		{StageChangePlan, StageEnrollAfterChange},
		{StageEnrollAfterChange, StageCongratulations},
	}
	for _, pair := range before {
		assert.Less(t, index[pair[0]], index[pair[1]], "%s before %s", pair[0], pair[1])
	}

	signature := stages[index[StageSignature]]
	assert.Equal(t, 3, signature.Attempts)
	assert.Equal(t, Required, signature.Policy)
	assert.Equal(t, BestEffort, stages[index[StageEligibilityLetter]].Policy)
	assert.Equal(t, BestEffort, stages[index[StageCongratulations]].Policy)
}

func TestStages_Branches(t *testing.T) {
	stages := Stages()
	applies := func(name string, c *Client) bool {
		for _, st := range stages {
			if st.Name == name {
				return st.When == nil || st.When(c)
			}
		}
		t.Fatalf("no stage %s", name)
		return false
	}

	male := &Client{Record: &types.ClientRecord{Gender: types.GenderMale}}
	female := &Client{Record: &types.ClientRecord{Gender: types.GenderFemale}, ShortPath: true, Accepted: true}

	assert.False(t, applies(StagePregnancy, male))
	assert.True(t, applies(StagePregnancy, female))
	assert.True(t, applies(StageAddressValidation, male))
	assert.False(t, applies(StageAddressValidation, female))
	assert.True(t, applies(StageFinalize, female))
	assert.True(t, applies(StageChangePlan, male))
	assert.True(t, applies(StageEnrollDirect, female))
	assert.False(t, applies(StageEnrollAfterChange, female))
}
