// Package testutil provides test fixtures for the oauth2-engine library:
// a controllable clock, a pre-populated in-memory store with well-known
// clients and users, and request helpers.
package testutil
