package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userhub/api/internal/apperr"
	"userhub/api/internal/ids"
	"userhub/api/internal/models"
)

func registered(t *testing.T, f *fixture) (models.User, models.ActivationToken) {
	t.Helper()
	f.mailOK()
	user, err := f.register.Register(context.Background(), alice())
	require.NoError(t, err)
	return user, f.tokens.only()
}

func TestRedeemActivatesUser(t *testing.T) {
	f := newFixture()
	user, token := registered(t, f)

	redeemed, err := f.activation.Redeem(context.Background(), token.ID)
	require.NoError(t, err)
	assert.True(t, redeemed.Used)
	assert.Equal(t, user.ID, redeemed.UserID)

	assert.Equal(t, []string{
		models.FeatureCreateSession,
		models.FeatureReadSession,
		models.FeatureUpdateUser,
	}, f.users.get(user.ID).Features)
}

func TestRedeemTwiceIsNoop(t *testing.T) {
	f := newFixture()
	user, token := registered(t, f)
	ctx := context.Background()

	first, err := f.activation.Redeem(ctx, token.ID)
	require.NoError(t, err)
	featuresAfterFirst := f.users.get(user.ID).Features

	// the used token is returned even after expiry
	f.clock.t = f.clock.t.Add(time.Hour)
	second, err := f.activation.Redeem(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, featuresAfterFirst, f.users.get(user.ID).Features)
	assert.Equal(t, 1, f.tokens.marked)
}

func TestRedeemRollsBackWhenMarkUsedFails(t *testing.T) {
	f := newFixture()
	user, token := registered(t, f)
	ctx := context.Background()

	f.tokens.markErr = errors.New("connection reset")
	_, err := f.activation.Redeem(ctx, token.ID)
	appErr := requireLocation(t, err, "INFRA:DATABASE:MARK_ACTIVATION_TOKEN_USED")
	assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode)

	assert.Equal(t, []string{models.FeatureReadActivationToken}, f.users.get(user.ID).Features)
	assert.False(t, f.tokens.only().Used)

	// the user can still activate once the database recovers
	f.tokens.markErr = nil
	redeemed, err := f.activation.Redeem(ctx, token.ID)
	require.NoError(t, err)
	assert.True(t, redeemed.Used)
	assert.Contains(t, f.users.get(user.ID).Features, models.FeatureUpdateUser)
}

func TestRedeemExpiredToken(t *testing.T) {
	f := newFixture()
	user, token := registered(t, f)

	f.clock.t = f.clock.t.Add(15 * time.Minute)
	_, err := f.activation.Redeem(context.Background(), token.ID)
	appErr := requireLocation(t, err, LocationTokenExpired)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)

	assert.Equal(t, []string{models.FeatureReadActivationToken}, f.users.get(user.ID).Features)
	assert.False(t, f.tokens.only().Used)
}

func TestRedeemJustBeforeExpiry(t *testing.T) {
	f := newFixture()
	_, token := registered(t, f)

	f.clock.t = f.clock.t.Add(15*time.Minute - time.Nanosecond)
	_, err := f.activation.Redeem(context.Background(), token.ID)
	assert.NoError(t, err)
}

func TestRedeemUnknownToken(t *testing.T) {
	f := newFixture()

	_, err := f.activation.Redeem(context.Background(), ids.NewSecret())
	appErr := requireLocation(t, err, LocationTokenNotFound)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
}

func TestRedeemMissingUser(t *testing.T) {
	f := newFixture()
	token, err := f.activation.Issue(context.Background(), ids.New())
	require.NoError(t, err)

	_, err = f.activation.Redeem(context.Background(), token.ID)
	appErr := requireLocation(t, err, LocationActivationUser)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
	assert.False(t, f.tokens.only().Used)
}

func TestRedeemForActiveUserIsForbidden(t *testing.T) {
	f := newFixture()
	user, first := registered(t, f)
	ctx := context.Background()
	_, err := f.activation.Redeem(ctx, first.ID)
	require.NoError(t, err)

	second, err := f.activation.Issue(ctx, user.ID)
	require.NoError(t, err)
	_, err = f.activation.Redeem(ctx, second.ID)
	appErr := requireLocation(t, err, LocationActivationFeature)
	assert.Equal(t, http.StatusForbidden, appErr.StatusCode)

	got, err := f.tokens.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, got.Used)
}

func TestConcurrentRedeemActivatesOnce(t *testing.T) {
	f := newFixture()
	user, token := registered(t, f)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.activation.Redeem(context.Background(), token.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireLocation(t, err, LocationActivationFeature)
	}
	assert.GreaterOrEqual(t, succeeded, 1)
	assert.Equal(t, []string{
		models.FeatureCreateSession,
		models.FeatureReadSession,
		models.FeatureUpdateUser,
	}, f.users.get(user.ID).Features)
}
