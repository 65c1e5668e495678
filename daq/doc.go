// Package daq implements the acquisition core of the instrument: the job
// queue, the rate-to-timer mapping, the sample ring with its corruption
// tracker, and the interrupt-driven sampling engine.
//
// Hardware is reached through two narrow collaborators. A [Converter] reads
// raw frames and programs the analog front end; a [Timer] produces the
// sampling period. The engine never blocks: the platform calls
// [Engine.TimerElapsed] and [Engine.DataReady] from its interrupt sources
// and the engine services one sample once both have fired.
//
//	eng := daq.NewEngine(conv, timer, daq.Options{})
//	eng.Enqueue(100, 1000, 0x01)
//	eng.Start()
//	// interrupts arrive ...
//	n := eng.Drain(buf)
package daq
