// Package hash hashes and verifies secrets.
//
// Credential hashes (bcrypt, argon2id) are produced by the database credential
// applier. The keyed HMAC-SHA256 hasher turns opaque session references into
// lookup keys so that the references themselves are never stored.
package hash
