// Package services implements clients for external collaborators: the
// Spotify authorization service and history API, and the SendGrid mail
// delivery API.
//
// The Spotify client deliberately carries no per-user session state.
// Refreshing a credential is a pure function of the stored refresh token,
// and every data call takes the access token it should use. This keeps
// the ingestion loop free of shared mutable authentication state across
// users.
package services
