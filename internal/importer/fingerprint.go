package importer

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// normalize cleans one content field for fingerprinting: lowercased,
// trimmed, line endings unified.
func normalize(part string) string {
	p := strings.ToLower(part)
	p = strings.TrimSpace(p)
	return strings.ReplaceAll(p, "\r\n", "\n")
}

// Fingerprint derives a stable content hash for a question/answer pair,
// used to skip re-importing cards that already exist. The fields are
// joined with a newline so "ab"+"c" and "a"+"bc" never collide.
func Fingerprint(question, answer string) string {
	joined := normalize(question) + "\n" + normalize(answer)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(joined)))
}
