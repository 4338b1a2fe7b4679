// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package blob stores option images uploaded as base64 data URIs.

	images := blob.New(cfg.UploadDir, cfg.MaxImageSize)
	path, err := images.Save("data:image/png;base64,iVBORw0...")
	// path == "uploads/3f1c...e2.png"

Only JPEG, PNG, GIF and WebP are accepted. The declared type must be on that
list and the decoded bytes must parse as one of those formats; the sniffed
format picks the extension. Files are named with a random UUID, never with
client input.
*/
package blob
