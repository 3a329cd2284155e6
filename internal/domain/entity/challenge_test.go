package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChallengePurpose_Valid(t *testing.T) {
	assert.True(t, PurposePasswordReset.Valid())
	assert.True(t, PurposeOtpVerification.Valid())
	assert.False(t, ChallengePurpose("signup").Valid())
	assert.False(t, ChallengePurpose("").Valid())
}

func TestChallenge_Lifecycle(t *testing.T) {
	now := time.Now()
	c := &Challenge{
		SubjectID:    1,
		Purpose:      PurposeOtpVerification,
		SecretDigest: "digest",
		IssuedAt:     now,
		ExpiresAt:    now.Add(5 * time.Minute),
	}

	assert.True(t, c.IsLive(now))
	assert.False(t, c.IsConsumed())
	assert.False(t, c.IsSuperseded())
	assert.False(t, c.IsExpired(now))

	// Just before expiry the challenge is still live.
	assert.True(t, c.IsLive(now.Add(5*time.Minute-time.Second)))

	// Past expiry it is not, even though it was never consumed.
	assert.False(t, c.IsLive(now.Add(5*time.Minute+time.Second)))
	assert.True(t, c.IsExpired(now.Add(5*time.Minute+time.Second)))
}

func TestChallenge_TerminalStates(t *testing.T) {
	now := time.Now()
	base := Challenge{
		SubjectID: 1,
		Purpose:   PurposePasswordReset,
		IssuedAt:  now,
		ExpiresAt: now.Add(30 * time.Minute),
	}

	consumed := base
	consumedAt := now.Add(time.Minute)
	consumed.ConsumedAt = &consumedAt
	assert.True(t, consumed.IsConsumed())
	assert.False(t, consumed.IsLive(now.Add(2*time.Minute)))

	superseded := base
	supersededAt := now.Add(time.Minute)
	superseded.SupersededAt = &supersededAt
	assert.True(t, superseded.IsSuperseded())
	assert.False(t, superseded.IsLive(now.Add(2*time.Minute)))
}
