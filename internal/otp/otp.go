// Package otp verifies time-based (RFC 6238) and counter-based (RFC 4226)
// one-time codes. It holds no state: counters and replay markers are the
// caller's to persist.
package otp

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// Mode selects the code derivation.
type Mode string

const (
	ModeTOTP Mode = "totp"
	ModeHOTP Mode = "hotp"
)

var ErrUnknownMode = errors.New("unknown otp mode")

// ParseMode accepts "totp" or "hotp"; an empty string means TOTP.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeTOTP:
		return ModeTOTP, nil
	case ModeHOTP:
		return ModeHOTP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Defaults for Params.
const (
	DefaultStep      = 30 * time.Second
	DefaultSkew      = 1
	DefaultLookAhead = 20
)

// Params are the verification policy knobs.
type Params struct {
	// Step is the TOTP time step.
	Step time.Duration

	// Skew is how many steps either side of the current one are accepted.
	Skew uint

	// LookAhead is how many HOTP counter values past the stored one are
	// scanned, to tolerate codes generated but never submitted.
	LookAhead uint64

	Digits    otp.Digits
	Algorithm otp.Algorithm
}

// DefaultParams returns the policy used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Step:      DefaultStep,
		Skew:      DefaultSkew,
		LookAhead: DefaultLookAhead,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Result reports a verification outcome.
type Result struct {
	Accepted bool

	// NewCounter is the HOTP counter to persist: one past the matched value.
	NewCounter uint64

	// Step is the matched TOTP time step (unix time / step).
	Step int64
}

// Engine computes and checks codes. Now is the clock used by VerifyNow and
// may be replaced in tests.
type Engine struct {
	params Params
	Now    func() time.Time
}

func NewEngine(p Params) *Engine {
	if p.Step < time.Second {
		p.Step = DefaultStep
	}
	if p.Digits == 0 {
		p.Digits = otp.DigitsSix
	}
	return &Engine{params: p, Now: time.Now}
}

func (e *Engine) Params() Params {
	return e.params
}

// Verify checks code against secret. For HOTP counter is the stored
// counter; for TOTP it is ignored and at supplies the time.
func (e *Engine) Verify(secret string, mode Mode, code string, counter uint64, at time.Time) (Result, error) {
	switch mode {
	case ModeTOTP:
		return e.verifyTOTP(secret, code, at)
	case ModeHOTP:
		return e.verifyHOTP(secret, code, counter)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// VerifyNow is Verify at the engine clock's current time.
func (e *Engine) VerifyNow(secret string, mode Mode, code string, counter uint64) (Result, error) {
	return e.Verify(secret, mode, code, counter, e.Now())
}

// TimeStep returns the TOTP step number containing t.
func (e *Engine) TimeStep(t time.Time) int64 {
	return t.Unix() / int64(e.params.Step/time.Second)
}

func (e *Engine) verifyTOTP(secret, code string, at time.Time) (Result, error) {
	current := e.TimeStep(at)
	skew := int64(e.params.Skew)

	for delta := -skew; delta <= skew; delta++ {
		step := current + delta
		want, err := e.TOTPCodeAtStep(secret, step)
		if err != nil {
			return Result{}, err
		}
		if equal(want, code) {
			return Result{Accepted: true, Step: step}, nil
		}
	}
	return Result{}, nil
}

func (e *Engine) verifyHOTP(secret, code string, counter uint64) (Result, error) {
	for c := counter; c <= counter+e.params.LookAhead; c++ {
		want, err := e.HOTPCode(secret, c)
		if err != nil {
			return Result{}, err
		}
		if equal(want, code) {
			return Result{Accepted: true, NewCounter: c + 1}, nil
		}
	}
	return Result{NewCounter: counter}, nil
}

// TOTPCodeAtStep returns the code valid during the given time step.
func (e *Engine) TOTPCodeAtStep(secret string, step int64) (string, error) {
	period := uint(e.params.Step / time.Second)
	at := time.Unix(step*int64(period), 0)
	return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    period,
		Digits:    e.params.Digits,
		Algorithm: e.params.Algorithm,
	})
}

// TOTPCode returns the code valid at t.
func (e *Engine) TOTPCode(secret string, t time.Time) (string, error) {
	return e.TOTPCodeAtStep(secret, e.TimeStep(t))
}

// HOTPCode returns the code for counter.
func (e *Engine) HOTPCode(secret string, counter uint64) (string, error) {
	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    e.params.Digits,
		Algorithm: e.params.Algorithm,
	})
}

func equal(want, got string) bool {
	return len(want) == len(got) && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
