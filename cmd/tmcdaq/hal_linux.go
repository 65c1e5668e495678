//go:build linux

package main

import (
	"github.com/ardnew/tmcdaq/device"
	"github.com/ardnew/tmcdaq/device/hal"
	"github.com/ardnew/tmcdaq/device/hal/functionfs"
	"github.com/ardnew/tmcdaq/pkg/config"
)

func newFunctionFS(cfg *config.Config, iface *device.Interface) (hal.DeviceHAL, error) {
	return functionfs.New(functionfs.Options{
		Dir:       cfg.HAL.FunctionFSDir,
		Interface: iface,
		HighSpeed: cfg.HAL.HighSpeed,
	}), nil
}
