// Package security provides security features for the OAuth server including
// rate limiting, audit logging, expiry checks, request IDs, and secure header
// management.
package security
