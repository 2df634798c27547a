package embed

import "strings"

// MaxInputChars bounds how much text is sent to a remote embedding provider
// per chunk. Providers typically enforce their own token limits; truncating
// by character count here avoids shipping payloads large enough to trip
// those limits for pathologically long chunks (e.g. minified files that slip
// past extension filtering).
const MaxInputChars = 32000

// preprocessText normalizes a chunk of text before it is sent to an HTTP
// embedding provider: CRLF is collapsed to LF so line-ending differences
// don't perturb embeddings of otherwise-identical content, a leading UTF-8
// byte-order mark is stripped, overlong input is truncated, and an
// all-whitespace input is replaced with a single space since providers
// reject an empty string outright.
func preprocessText(text string) string {
	text = strings.TrimPrefix(text, "﻿")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	if len(text) > MaxInputChars {
		text = text[:MaxInputChars]
	}

	if strings.TrimSpace(text) == "" {
		return " "
	}
	return text
}
