// Package util provides common utility functions used across the oauth2-engine library.
//
// This package contains helper functions for string manipulation and URL
// building that don't fit into domain-specific packages.
//
// Key utilities:
//   - RedactToken: Log-safe form of bearer tokens and authorization codes
//   - AppendQuery / AppendFragment: Build redirect URLs carrying protocol parameters
package util
