// Package plex talks to the Plex Media Server and plex.tv on behalf of the
// artwork pipeline.
//
// Client lists library sections, items and their children, uploads poster and
// backdrop images, edits labels, and restores default artwork. Every call is
// paced by a shared rate limiter and guarded by a circuit breaker so a
// struggling server is not hammered by concurrent workers.
//
// Authenticator runs the plex.tv PIN link flow, persists the resulting token
// in a JSON state file, and can discover the server URL for the linked
// account.
package plex
