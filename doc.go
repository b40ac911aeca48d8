// Package auth implements pluggable credential providers bound to a user
// entity.
//
// Providers:
//   - A Provider verifies one Attempt (claimed identity plus presented
//     secret) and reports an Outcome: an authenticated user, a new identity
//     ready to be created, or a rejection. Verify never writes to the store.
//   - LocalProvider keeps a derived secret (bcrypt or argon2id) in its
//     ProviderData. FederatedProvider verifies signed assertions from an
//     identity provider through keyfunc.
//   - Every provider owns namespaced columns on User (local_id, local_data,
//     ...). Registry rejects duplicate names and names without a slot.
//
// Orchestration:
//   - Auther runs Login and Register, creates users for new identities and
//     maps unique violations to ErrIdentityConflict. A wrong secret and an
//     unknown identity with signup disabled yield the same
//     ErrInvalidCredentials.
//   - ActivitySink receives login, signup, conflict and logout events. Sinks
//     run best effort and their errors are only logged.
//
// Sessions:
//   - RouteAuthenticator signs the user id, role and identity keys into a
//     cookie backed JWT and guards routes with the jwtware middleware.
//     ClaimsDecorator may add Metadata before signing; protected claims are
//     checked afterwards and any mutation fails the session.
package auth
