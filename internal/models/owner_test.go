package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestOwnerFromColumns(t *testing.T) {
	o, err := OwnerFromColumns(strPtr("u1"), nil)
	require.NoError(t, err)
	assert.Equal(t, OwnerUser, o.Kind())
	assert.Equal(t, "u1", o.ID())

	o, err = OwnerFromColumns(nil, strPtr("s1"))
	require.NoError(t, err)
	assert.Equal(t, OwnerSchool, o.Kind())

	_, err = OwnerFromColumns(strPtr("u1"), strPtr("s1"))
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, err = OwnerFromColumns(nil, strPtr(""))
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestOwnerColumnsRoundTrip(t *testing.T) {
	userID, schoolID := SchoolOwner("s9").Columns()
	assert.Nil(t, userID)
	require.NotNil(t, schoolID)
	assert.Equal(t, "s9", *schoolID)

	var sub Subscription
	require.NoError(t, sub.SetOwner(UserOwner("u2")))
	owner, err := sub.Owner()
	require.NoError(t, err)
	assert.Equal(t, "user:u2", owner.String())

	assert.ErrorIs(t, sub.SetOwner(Owner{}), ErrInvalidOwner)
}

func TestParseSubscriptionStatus(t *testing.T) {
	assert.Equal(t, SubscriptionStatusPastDue, ParseSubscriptionStatus("past_due"))
	assert.Equal(t, SubscriptionStatusIncomplete, ParseSubscriptionStatus("something_new"))
	assert.True(t, SubscriptionStatusTrialing.IsLive())
	assert.False(t, SubscriptionStatusCanceled.IsLive())
}
