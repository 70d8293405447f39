// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package storage decodes and stores user profile images.

# Decoding

DecodeImage accepts either a data URL or bare base64, enforces MaxImageSize
and sniffs the content type. Only PNG, JPEG, GIF and WebP are accepted.

# Storage

DiskStore writes each image under a random UUID name and returns its public
URL:

	store, err := storage.NewDiskStore("./uploads", "https://example.org/images")
	url, err := store.Save(ctx, "image/png", data)

Files are written to a temp file first and renamed into place.
*/
package storage
