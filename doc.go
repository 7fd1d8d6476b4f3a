// Package authclient owns the lifecycle of a user's authenticated session
// against the product's auth API: acquiring tokens, transparently refreshing
// them on expiry, persisting session identity across restarts, enumerating
// and revoking device sessions, and driving the multi-step signup flow.
//
// Session lifecycle:
//   - SessionManager is the single writer of session state. It moves the
//     session between anonymous, authenticating, authenticated, and
//     refreshing, mirrors the {user, isAuthenticated} subset into a
//     Persistence store, and keeps the access token in a TokenHolder.
//   - The Client routes every call through an interceptor pipeline that
//     injects the bearer token and, on an authorization failure, performs a
//     single-flight token refresh and retries the original request once.
//     Refresh failure tears the session down unconditionally.
//
// Signup wizard:
//   - Wizard sequences the four validated signup steps. Each step runs its
//     local schema before any server round-trip (account probe, username
//     availability) and never advances past pending or failed validation.
//
// Device sessions:
//   - Registry lists and revokes remote session records. Its view is only
//     ever replaced by server responses, never mutated speculatively.
package authclient
