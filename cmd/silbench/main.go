// Command silbench benchmarks silhouette evaluation of a procedural mesh
// under an orbiting point light.
//
//	silbench -mesh sphere -mode readback -backend gpu -n 1000 -validate
//	silbench -mesh cube -draw -png 'frames/%05d.png' -after continue
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gogpu/gg"

	"github.com/gogpu/silhouette"
	_ "github.com/gogpu/silhouette/gpu" // register the gpu backend
	"github.com/gogpu/silhouette/harness"
	"github.com/gogpu/silhouette/internal/meshgen"
	"github.com/gogpu/silhouette/sink"
)

func main() {
	var (
		mode     = flag.String("mode", "readback", "execution mode: sequential, parallel or readback")
		backend  = flag.String("backend", silhouette.BackendCPU, "evaluator backend for parallel modes: "+strings.Join(silhouette.Backends(), ", "))
		n        = flag.Int("n", 1000, "measured iterations")
		draw     = flag.Bool("draw", false, "hand silhouette segments to the sinks")
		pngPath  = flag.String("png", "", "write drawn frames as PNG (path may contain a %d verb)")
		pngEvery = flag.Int("png-every", 1, "write every n-th frame")
		meshName = flag.String("mesh", "sphere", "mesh: "+strings.Join(meshgen.Names(), ", "))
		cells    = flag.Int("cells", meshgen.DefaultCells, "marching cubes cells for SDF meshes")
		after    = flag.String("after", "stop", "after the measured iterations: stop or continue")
		validate = flag.Bool("validate", false, "cross-check sampled iterations against the sequential evaluator")
		workers  = flag.Int("workers", 0, "CPU workers (0 = GOMAXPROCS)")
		group    = flag.Int("group", silhouette.DefaultGroupSize, "CPU work items per group")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	silhouette.SetLogger(logger)
	gg.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	opts := options{
		mode: *mode, backend: *backend, n: *n, draw: *draw,
		png: *pngPath, pngEvery: *pngEvery, mesh: *meshName, cells: *cells,
		after: *after, validate: *validate, workers: *workers, group: *group,
	}
	err := run(ctx, logger, opts)
	stop()
	if err != nil {
		logger.Error("silbench failed", "err", err)
		os.Exit(1)
	}
}

type options struct {
	mode, backend string
	n             int
	draw          bool
	png           string
	pngEvery      int
	mesh          string
	cells         int
	after         string
	validate      bool
	workers       int
	group         int
}

var errMismatch = errors.New("validation found mismatches")

func run(ctx context.Context, logger *slog.Logger, o options) error {
	mode, err := harness.ParseMode(o.mode)
	if err != nil {
		return err
	}
	after, err := harness.ParseAfterLimit(o.after)
	if err != nil {
		return err
	}

	mesh, err := meshgen.ByName(o.mesh, o.cells)
	if err != nil {
		return err
	}
	topo, err := silhouette.BuildTopology(mesh.Vertices, mesh.Indices)
	if err != nil {
		return fmt.Errorf("build topology of %s: %w", o.mesh, err)
	}

	states := harness.DefaultOrbit()
	hopts := []harness.Option{
		harness.WithStates(states),
		harness.WithEvaluatorOptions(silhouette.WithWorkers(o.workers), silhouette.WithGroupSize(o.group)),
	}
	if o.draw {
		sinks := sink.Multi{sink.NewLog(logger)}
		if o.png != "" {
			p := sink.NewPNG(o.png, states.Plane, sink.WithEvery(o.pngEvery))
			defer p.Close()
			sinks = append(sinks, p)
		}
		hopts = append(hopts, harness.WithSink(sinks))
	}

	h, err := harness.New(topo, harness.Config{
		Mode:       mode,
		Backend:    o.backend,
		Draw:       o.draw,
		Iterations: o.n,
		AfterLimit: after,
		Validate:   o.validate,
	}, hopts...)
	if err != nil {
		return err
	}
	defer h.Close()

	rep, err := h.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(rep)
	if rep.Mismatches > 0 {
		return fmt.Errorf("%w: %d of %d", errMismatch, rep.Mismatches, rep.Validated)
	}
	return nil
}
