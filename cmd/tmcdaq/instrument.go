package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/tmcdaq/daq"
	"github.com/ardnew/tmcdaq/daq/ads1299"
	"github.com/ardnew/tmcdaq/daq/command"
	"github.com/ardnew/tmcdaq/daq/sim"
	"github.com/ardnew/tmcdaq/device"
	"github.com/ardnew/tmcdaq/device/class/tmc"
	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/device/hal/loopback"
	"github.com/ardnew/tmcdaq/pkg"
	"github.com/ardnew/tmcdaq/pkg/config"
	"github.com/ardnew/tmcdaq/pkg/metrics"
	"github.com/ardnew/tmcdaq/pkg/prof"
)

// instrument is the assembled device: engine, dispatcher, USBTMC driver
// and device stack on one HAL.
type instrument struct {
	cfg *config.Config

	registry *prometheus.Registry
	board    *sim.Board
	engine   *daq.Engine
	driver   *tmc.TMC
	stack    *device.Stack

	// loop is set when the loopback HAL is selected.
	loop *loopback.HAL
}

func newInstrument(cfg *config.Config) (*instrument, error) {
	registry := prometheus.NewRegistry()
	rec, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	in := cfg.Instrument
	board := sim.NewBoard(float64(in.ClockHz))
	conv := ads1299.New(board.Chip)
	if err := conv.Init(); err != nil {
		return nil, err
	}
	engine := daq.NewEngine(conv, board, daq.Options{
		ClockHz:      float64(in.ClockHz),
		MaxRate:      in.MaxRate,
		RingCapacity: in.RingCapacity,
		QueueDepth:   in.QueueDepth,
		Recorder:     rec,
	})

	u := cfg.USBTMC
	iface, err := tmc.NewInterface(u.Interface, u.BulkIn, u.BulkOut, uint16(u.MaxPacketSize))
	if err != nil {
		return nil, err
	}
	opts := tmc.Options{
		DataBufferSize:   u.DataBufferSize,
		ResponseCapacity: u.ResponseCapacity,
		MessageCapacity:  u.MessageCapacity,
		TalkOnly:         u.TalkOnly,
		ListenOnly:       u.ListenOnly,
		Recorder:         rec,
	}
	if u.IndicatorPulse {
		opts.IndicatorPulse = func() {
			pkg.LogInfo(pkg.ComponentTMC, "indicator pulse")
		}
	}
	driver := tmc.New(command.New(engine, rec), opts)
	if err := iface.SetClassDriver(driver); err != nil {
		return nil, err
	}

	inst := &instrument{
		cfg:      cfg,
		registry: registry,
		board:    board,
		engine:   engine,
		driver:   driver,
	}

	var bus hal.DeviceHAL
	switch cfg.HAL.Kind {
	case config.HALFunctionFS:
		if bus, err = newFunctionFS(cfg, iface); err != nil {
			return nil, err
		}
	default:
		speed := hal.SpeedFull
		if cfg.HAL.HighSpeed {
			speed = hal.SpeedHigh
		}
		inst.loop = loopback.New(speed)
		bus = inst.loop
	}

	inst.stack = device.NewStack(bus)
	if err := inst.stack.AddInterface(iface); err != nil {
		return nil, err
	}
	driver.SetStack(inst.stack)
	inst.stack.SetOnConnect(driver.Enable)
	inst.stack.SetOnDisconnect(driver.Disable)
	return inst, nil
}

// handler serves metrics, liveness, the engine status and, in profiling
// builds, pprof.
func (i *instrument) handler() http.Handler {
	router := metrics.NewHandler(i.registry, func() any { return i.engine.Status() })
	prof.Mount(router)
	return router
}

// run starts the stack and serves until ctx is done or a component fails.
func (i *instrument) run(ctx context.Context) error {
	if err := i.stack.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := i.stack.Stop(); err != nil {
			pkg.LogWarn(component, "stack stop", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Stopping the stack releases transfers blocked in the HAL.
		<-gctx.Done()
		i.engine.Stop()
		return i.stack.Stop()
	})
	g.Go(func() error {
		return i.driver.Run(gctx)
	})
	g.Go(func() error {
		return i.board.Run(gctx, i.engine)
	})
	if addr := i.cfg.Metrics.Listen; addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, addr, i.handler())
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, pkg.ErrNotRunning) {
		return nil
	}
	return err
}
