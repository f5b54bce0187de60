package oauth

import "golang.org/x/oauth2"

// SetEndpointForTest points the flow at a fake provider.
func (f *GitHubFlow) SetEndpointForTest(endpoint oauth2.Endpoint, userURL, emailsURL string) {
	f.endpoint = endpoint
	f.userURL = userURL
	f.emailsURL = emailsURL
}

// StateKeyPrefixForTest exposes the store key prefix.
const StateKeyPrefixForTest = stateKeyPrefix
