package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvitations(t *testing.T) (*InvitationManager, RepositoryManager, *testClock) {
	t.Helper()
	clock := newTestClock()
	repo := newTestRepo(t)
	codec := NewTokenCodec(testSigningKey, "identity-test").WithClock(clock.Now)
	m := NewInvitationManager(repo, codec).WithClock(clock.Now).WithLogger(silentLogger{})
	return m, repo, clock
}

func TestInvitationManager_IssueRedeem(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestInvitations(t)

	inv, err := m.Issue(ctx, "Invitee@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "invitee@example.com", inv.Email)
	assert.NotEmpty(t, inv.Token)
	assert.Nil(t, inv.ExpireAt)

	stored, err := repo.Invitations().FindByEmail(ctx, "invitee@example.com")
	require.NoError(t, err)
	assert.Equal(t, inv.Token, stored.Token)

	email, err := m.Inspect(inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "invitee@example.com", email)

	email, err = m.Redeem(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "invitee@example.com", email)

	_, err = repo.Invitations().FindByEmail(ctx, "invitee@example.com")
	assert.True(t, IsInvalidToken(err))
}

func TestInvitationManager_DoubleRedeem(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestInvitations(t)

	inv, err := m.Issue(ctx, "invitee@example.com")
	require.NoError(t, err)

	_, err = m.Redeem(ctx, inv.Token)
	require.NoError(t, err)

	_, err = m.Redeem(ctx, inv.Token)
	require.Error(t, err)
	assert.True(t, IsInvalidToken(err))
	assert.False(t, IsExpiredToken(err))
}

func TestInvitationManager_ReissueSupersedes(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestInvitations(t)

	first, err := m.Issue(ctx, "invitee@example.com")
	require.NoError(t, err)

	clock.Advance(time.Second)

	second, err := m.Issue(ctx, "invitee@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = m.Redeem(ctx, first.Token)
	assert.True(t, IsInvalidToken(err))

	email, err := m.Redeem(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, "invitee@example.com", email)
}

func TestInvitationManager_TTL(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestInvitations(t)
	m.WithTTL(time.Hour)

	inv, err := m.Issue(ctx, "invitee@example.com")
	require.NoError(t, err)
	require.NotNil(t, inv.ExpireAt)
	assert.True(t, inv.ExpireAt.Equal(clock.Now().Add(time.Hour)))

	clock.Advance(2 * time.Hour)

	_, err = m.Redeem(ctx, inv.Token)
	require.Error(t, err)
	assert.True(t, IsExpiredToken(err))
}

func TestInvitationManager_RejectsOtherPurposes(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestInvitations(t)

	session, err := m.codec.Issue(&TokenClaims{Email: "invitee@example.com", Purpose: PurposeSession}, 0)
	require.NoError(t, err)

	_, err = m.Inspect(session)
	assert.True(t, IsInvalidToken(err))

	_, err = m.Redeem(ctx, session)
	assert.True(t, IsInvalidToken(err))

	_, err = m.Redeem(ctx, "garbage")
	assert.True(t, IsInvalidToken(err))
}

func TestInvitationManager_IssueRequiresEmail(t *testing.T) {
	m, _, _ := newTestInvitations(t)

	_, err := m.Issue(context.Background(), "  ")
	assert.True(t, IsValidation(err))
}

func TestInvitationManager_ConcurrentIssue(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestInvitations(t)

	const workers = 5
	tokens := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := m.Issue(ctx, "invitee@example.com")
			errs[i] = err
			if err == nil {
				tokens[i] = inv.Token
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	live, err := repo.Invitations().FindByEmail(ctx, "invitee@example.com")
	require.NoError(t, err)

	var redeemed int
	for _, token := range tokens {
		email, err := m.Redeem(ctx, token)
		if err == nil {
			redeemed++
			assert.Equal(t, "invitee@example.com", email)
			assert.Equal(t, live.Token, token)
			continue
		}
		assert.True(t, IsInvalidToken(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, redeemed)
}
