package engine

import "errors"

// Every state-changing operation either commits fully or returns one of
// these and leaves the store untouched. None are retryable as-is; callers
// must resubmit with corrected input.
var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrGaugeAlreadyExists      = errors.New("gauge already exists")
	ErrGaugeNotFound           = errors.New("gauge not found")
	ErrInvalidVotingRatio      = errors.New("voting ratio exceeds 10000 basis points")
	ErrVoteTooOften            = errors.New("re-vote before the minimum interval elapsed")
	ErrInsufficientVotingRatio = errors.New("voter's total allocation would exceed 100%")
	ErrLockExpiresTooSoon      = errors.New("lock expires too soon to carry weight")
	ErrTotalWeightIsZero       = errors.New("total weight is zero")
	ErrTimestampError          = errors.New("timestamp behind last checkpoint")
	ErrArithmeticOverflow      = errors.New("arithmetic overflow")
)
