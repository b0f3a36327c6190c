package handlers

import (
	"context"
	"errors"

	"github.com/imamik/facets/internal/orchestration"
	"github.com/imamik/facets/internal/ui/display"
)

// KillOptions are the flags of the kill command.
type KillOptions struct {
	Options
	KillBogus bool
	Cloud     bool
	Node      bool
	// Yes answers the confirmation prompt.
	Yes bool
}

// Kill handles the cluster kill command.
func Kill(ctx context.Context, target string, opts KillOptions) (err error) {
	s, err := openSession(ctx, opts.Options, target)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.finish(opts.MetricsTextfile)) }()

	killer := orchestration.NewKiller(s.provider, s.nodes, confirmer(opts.Yes))
	killer.Reporter = display.NewTable(stdout)
	return killer.Kill(s.pctx, s.slice, orchestration.KillOptions{
		KillBogus: opts.KillBogus,
		Cloud:     opts.Cloud,
		Node:      opts.Node,
	})
}

func confirmer(yes bool) orchestration.Confirmer {
	switch {
	case yes:
		return orchestration.AssumeYes{}
	case stdinIsTerminal() && stdoutIsTerminal():
		return &orchestration.HuhConfirmer{}
	default:
		return &orchestration.LineConfirmer{In: stdin, Out: stdout}
	}
}
