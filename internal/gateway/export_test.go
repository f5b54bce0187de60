package gateway

// WaitCache flushes pending existence-cache writes so tests can observe them.
func (r *Resolver) WaitCache() {
	r.exists.cache.Wait()
}

// ForgetAccount drops an account from the existence cache.
func (r *Resolver) ForgetAccount(accountID string) {
	r.exists.Forget(accountID)
}

// TruncateBodyForTest exposes truncateBody.
var TruncateBodyForTest = truncateBody
