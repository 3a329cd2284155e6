package service

import "errors"

// Challenge flow specific errors used by handlers for stable error_type mapping.
var (
	ErrUnknownPurpose   = errors.New("unknown_challenge_purpose")
	ErrEffectNotAllowed = errors.New("effect_not_allowed_for_purpose")
)
