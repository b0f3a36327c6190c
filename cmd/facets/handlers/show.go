package handlers

import (
	"context"
	"errors"

	"github.com/imamik/facets/internal/orchestration"
	"github.com/imamik/facets/internal/ui/display"
)

// Show handles the cluster show command. It changes nothing.
func Show(ctx context.Context, target string, opts Options) (err error) {
	s, err := openSession(ctx, opts, target)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.finish(opts.MetricsTextfile)) }()

	launcher := orchestration.NewLauncher(s.provider, s.nodes, s.resolver)
	launcher.Reporter = display.NewTable(stdout)
	_, err = launcher.Report(s.pctx, s.slice)
	return err
}
