package service

import (
	"context"
	"fmt"
	"math/rand"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/repository"
)

const (
	refCodeMin      = 100_000_000
	refCodeSpan     = 900_000_000
	refCodeAttempts = 10

	internalRefPrefix = "INT-"
)

// refCodes draws nine-digit reference codes that are unique within a family.
type refCodes struct {
	draw func() int64
}

func newRefCodes() refCodes {
	return refCodes{draw: func() int64 { return refCodeMin + rand.Int63n(refCodeSpan) }}
}

// next returns a code not yet used in family. Company-family internal rows
// carry the INT- prefix.
func (g refCodes) next(ctx context.Context, r *repository.Repos, family domain.Family, internal bool) (string, error) {
	for i := 0; i < refCodeAttempts; i++ {
		code := fmt.Sprintf("%d", g.draw())
		if internal && family == domain.FamilyCompany {
			code = internalRefPrefix + code
		}
		exists, err := r.Transactions.ReferenceExists(ctx, family, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", domain.ConflictFrom(fmt.Errorf("no free %s reference code after %d attempts", family, refCodeAttempts))
}
