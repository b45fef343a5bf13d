// Package cryptoutil holds the hashing helpers used to fingerprint content
// trees and verify downloaded bundles.
package cryptoutil
