// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token and secret validation.

# Access Tokens

Access tokens are HS256 JWTs whose subject is the user id:

	token, err := auth.IssueToken(userID, username, secret, auth.DefaultTokenTTL)
	claims, err := auth.ParseToken("Bearer "+token, secret)

ParseToken accepts the token with or without a "Bearer " prefix, rejects
non-HMAC algorithms and maps expiry to ErrExpiredToken. Any other failure
wraps ErrInvalidToken.

# Event Secret

Event hooks carry a shared secret in the X-Event-Secret header:

	if err := auth.ValidateEventSecret(r.Header.Get("X-Event-Secret"), cfg.EventSecret); err != nil {
		// 403
	}

The comparison is constant time. An unset secret rejects everything.

# ID Generation

Random UUIDs for database records:

	id := auth.GenerateID()
*/
package auth
