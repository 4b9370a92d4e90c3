package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"reshard/internal/config"
	httpapi "reshard/internal/http"
	"reshard/internal/metrics"
	"reshard/internal/sink"
	"reshard/internal/source"
	"reshard/pkg/reshuffle"
	"reshard/pkg/topology"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := initConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	initLogger(&cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("reshuffle failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	topo, release, err := snapshotTopology(cfg)
	if err != nil {
		return err
	}
	defer release()
	slog.Info("topology captured", "topology", topo.String())

	pol, err := cfg.Reshuffle.DistributionPolicy()
	if err != nil {
		return err
	}

	src, err := source.Open(cfg.Source.Path)
	if err != nil {
		return err
	}

	stats := metrics.New()
	op, err := reshuffle.NewOperator(src, reshuffle.Options{
		Policy:     pol,
		Topology:   topo,
		ActionCol:  cfg.Reshuffle.ActionColumn,
		SegmentCol: cfg.Reshuffle.SegmentColumn,
		Verify:     cfg.Reshuffle.Verify,
		Metrics:    stats,
	})
	if err != nil {
		src.Close()
		return err
	}
	defer op.Close()

	out, err := sink.New(cfg.Sink.Dir, cfg.Reshuffle.SegmentColumn, cfg.Sink.ZstdLevel)
	if err != nil {
		return err
	}

	statusSrv := httpapi.NewServer(
		strconv.Itoa(cfg.HTTP.Port),
		httpapi.NewInfo(op.ID().String(), topo, pol.Kind.String(), op.Destinations()),
		stats,
	)
	statusSrv.Start()
	defer statusSrv.Shutdown(context.Background())

	var emitted int
	for {
		// Teardown between pulls: an aborted statement stops the stream here.
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		r, ok, err := op.Next()
		if err != nil {
			out.Close()
			return err
		}
		if !ok {
			break
		}
		if err := out.Write(r); err != nil {
			out.Close()
			return err
		}
		emitted++
	}

	spools := len(out.Segments())
	if err := out.Close(); err != nil {
		return err
	}
	slog.Info("reshuffle complete", "op", op.ID(), "rows_emitted", emitted, "spools", spools)
	return nil
}

// snapshotTopology freezes cluster membership for this run: live ZooKeeper
// membership when configured, the static config counts otherwise. The
// returned release func drops the ephemeral registration; it must stay held
// until the run finishes so peers keep counting this segment.
func snapshotTopology(cfg config.Config) (topology.Topology, func(), error) {
	if len(cfg.Node.ZKServers) == 0 {
		t, err := topology.New(cfg.Reshuffle.OldSegments, cfg.Node.NewSegments, cfg.Node.SegmentIndex)
		return t, func() {}, err
	}

	membership, err := topology.NewMembership(cfg.Node.ZKServers, cfg.Node.ZKRoot, cfg.Node.SegmentIndex)
	if err != nil {
		return topology.Topology{}, nil, err
	}
	if err := membership.RegisterSelf(); err != nil {
		membership.Close()
		return topology.Topology{}, nil, err
	}
	t, err := membership.Snapshot(cfg.Reshuffle.OldSegments)
	if err != nil {
		membership.Close()
		return topology.Topology{}, nil, err
	}
	return t, func() { membership.Close() }, nil
}
