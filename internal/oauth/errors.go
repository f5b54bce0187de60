package oauth

import "errors"

// Classified flow failures. Each maps to one terminal step of the flow;
// none is retried automatically.
var (
	// ErrDisabled is returned when no OAuth application is configured.
	ErrDisabled = errors.New("oauth: provider not configured")

	// ErrInvalidState is returned when the callback state is missing from
	// the store. The callback is treated as forged or replayed.
	ErrInvalidState = errors.New("oauth: invalid or expired state")

	// ErrProviderError is returned when the provider reported an error on
	// the callback instead of an authorization code.
	ErrProviderError = errors.New("oauth: provider returned an error")

	// ErrExchangeFailed is returned when the code-for-token exchange fails.
	ErrExchangeFailed = errors.New("oauth: token exchange failed")

	// ErrProfileFetch is returned when the provider profile cannot be read.
	ErrProfileFetch = errors.New("oauth: profile fetch failed")

	// ErrNoVerifiedEmail is returned when neither the profile nor the
	// email list yields a verified address.
	ErrNoVerifiedEmail = errors.New("oauth: no verified email on account")
)
