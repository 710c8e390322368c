package orders

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// FilesByUser lists every file unlocked by the user's complete orders.
func (s *service) FilesByUser(ctx context.Context, userID uuid.UUID) ([]models.ProductFile, error) {
	return s.files(ctx, byUser(userID))
}

// FilesByOrder lists the files unlocked by one order. Pending orders unlock
// nothing.
func (s *service) FilesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductFile, error) {
	return s.files(ctx, byOrder(orderID))
}

func (s *service) files(ctx context.Context, scope fileScope) ([]models.ProductFile, error) {
	var direct, nested []models.ProductFile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		direct, err = s.repo.DirectFiles(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		nested, err = s.repo.SubProductFiles(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order files")
	}
	return mergeFiles(direct, nested), nil
}

// mergeFiles keeps direct files first and drops repeats by file ID.
func mergeFiles(groups ...[]models.ProductFile) []models.ProductFile {
	seen := map[uuid.UUID]struct{}{}
	out := []models.ProductFile{}
	for _, group := range groups {
		for _, f := range group {
			if _, ok := seen[f.ID]; ok {
				continue
			}
			seen[f.ID] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
