// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifiers, password hashing and view-only tokens.

# Poll Identifiers

Public poll identifiers are 8 random base62 characters:

	id, err := auth.GenerateUniqueID()  // e.g. "aB3dE6gH"

The keyspace is 62^8. Collisions are not deduplicated here; the unique index
on polls.unique_id rejects them and the store retries.

# Passwords

Poll passwords are trimmed and hashed with bcrypt:

	hash, err := auth.HashPassword(password)
	err = auth.CheckPassword(hash, supplied)  // ErrIncorrectPassword on mismatch

# View-Only Tokens

The homepage listing hands out short-lived signed links that let a visitor look
at a poll without voting rights:

	signer := auth.NewTokenSigner(cfg.ViewTokenSecret)
	token := signer.Issue(pollID)
	ok := signer.Verify(token, pollID)

A token is the unpadded URL-safe base64 of

	pollID|issuedAtUnix|hex(HMAC-SHA256(secret, pollID|issuedAtUnix)[:16])

Tokens are valid for 300 seconds and only for the poll they were issued for.
Verify never returns an error; anything malformed is simply invalid.
*/
package auth
