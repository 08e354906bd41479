// Package archiver durably stores proof documents and returns
// content-addressed identifiers.
package archiver

import (
	"context"
	"regexp"

	"clubrun/internal/domain"
)

// Archiver uploads an immutable proof document and returns its content id.
type Archiver interface {
	Upload(ctx context.Context, doc domain.ProofDocument) (string, error)
}

// Content ids come in two known schemes: CIDv0 (base58, Qm prefix, 46 chars)
// and CIDv1 (lowercase base32, b prefix).
var (
	cidV0Pattern = regexp.MustCompile(`^Qm[1-9A-HJ-NP-Za-km-z]{44}$`)
	cidV1Pattern = regexp.MustCompile(`^b[a-z2-7]{20,}$`)
)

// ValidContentID reports whether id matches either known content-addressing
// scheme.
func ValidContentID(id string) bool {
	return cidV0Pattern.MatchString(id) || cidV1Pattern.MatchString(id)
}
