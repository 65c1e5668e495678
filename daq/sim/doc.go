// Package sim provides simulated acquisition hardware: a converter chip
// answering the ads1299 command set and a board timer that delivers the
// sampling interrupts to a [Sink] in real time.
//
// It stands in for the front end when the instrument runs on the loopback
// bus and lets the acquisition path be tested without hardware.
package sim
