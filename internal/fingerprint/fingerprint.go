// Package fingerprint computes the change-detection digest stored with every record.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
)

// Size is the length of a digest in hex characters.
const Size = md5.Size * 2

// Of returns the lowercase hex MD5 of content, or of fallback when content is
// empty. Whitespace-only content is content.
// MD5 keeps digests compatible with stores written by earlier versions; this is a
// change detector, not a security boundary.
func Of(content, fallback string) string {
	src := content
	if content == "" {
		src = fallback
	}
	sum := md5.Sum([]byte(src))
	return hex.EncodeToString(sum[:])
}
