//go:build !linux

package main

import (
	"fmt"

	"github.com/ardnew/tmcdaq/device"
	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/pkg"
	"github.com/ardnew/tmcdaq/pkg/config"
)

func newFunctionFS(cfg *config.Config, iface *device.Interface) (hal.DeviceHAL, error) {
	return nil, fmt.Errorf("hal %q: %w", cfg.HAL.Kind, pkg.ErrNotSupported)
}
