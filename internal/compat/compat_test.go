package compat

import (
	"testing"

	"redblood/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonorsFor(t *testing.T) {
	donors, err := DonorsFor(types.BloodTypeAPos)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.BloodType{"A+", "A-", "O+", "O-"}, donors)

	donors, err = DonorsFor(types.BloodTypeABPos)
	require.NoError(t, err)
	assert.ElementsMatch(t, types.AllBloodTypes, donors)

	donors, err = DonorsFor(types.BloodTypeONeg)
	require.NoError(t, err)
	assert.Equal(t, []types.BloodType{"O-"}, donors)
}

func TestRecipientsFor(t *testing.T) {
	recipients, err := RecipientsFor(types.BloodTypeONeg)
	require.NoError(t, err)
	assert.ElementsMatch(t, types.AllBloodTypes, recipients)

	recipients, err = RecipientsFor(types.BloodTypeABPos)
	require.NoError(t, err)
	assert.Equal(t, []types.BloodType{"AB+"}, recipients)
}

func TestChartsAreInverse(t *testing.T) {
	for _, donor := range types.AllBloodTypes {
		for _, recipient := range types.AllBloodTypes {
			donors, err := DonorsFor(recipient)
			require.NoError(t, err)
			recipients, err := RecipientsFor(donor)
			require.NoError(t, err)

			assert.Equal(t, contains(donors, donor), contains(recipients, recipient),
				"donor %s recipient %s", donor, recipient)
		}
	}
}

func TestEveryTypeReceivesFromItself(t *testing.T) {
	for _, b := range types.AllBloodTypes {
		ok, err := IsCompatible(b, b)
		require.NoError(t, err)
		assert.True(t, ok, b)
	}
}

func TestIsCompatible(t *testing.T) {
	ok, err := IsCompatible(types.BloodTypeANeg, types.BloodTypeBPos)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsCompatible(types.BloodTypeONeg, types.BloodTypeABNeg)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownBloodType(t *testing.T) {
	_, err := DonorsFor("C+")
	assert.Equal(t, types.KindInvalidBloodType, types.KindOf(err))

	_, err = RecipientsFor("")
	assert.Equal(t, types.KindInvalidBloodType, types.KindOf(err))

	_, err = IsCompatible("Z", types.BloodTypeAPos)
	assert.Equal(t, types.KindInvalidBloodType, types.KindOf(err))
}

func TestReturnedSetsAreCopies(t *testing.T) {
	donors, err := DonorsFor(types.BloodTypeAPos)
	require.NoError(t, err)
	donors[0] = "Z"

	again, err := DonorsFor(types.BloodTypeAPos)
	require.NoError(t, err)
	assert.Equal(t, types.BloodTypeAPos, again[0])
}
