package report

import (
	"context"
	"github.com/jnb666/trafficsigns/expt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoadAll parses each file concurrently. Results are returned in the order of paths.
func LoadAll(ctx context.Context, log *zap.Logger, paths []string) ([]*expt.Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reports := make([]*expt.Report, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := ParseFile(path)
			if err != nil {
				return err
			}
			log.Debug("loaded report", zap.String("path", path), zap.String("title", r.Title),
				zap.Int("experiments", len(r.Experiments)), zap.String("digest", r.Digest))
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
