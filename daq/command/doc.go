// Package command turns USBTMC command messages into acquisition engine
// operations.
//
// A message is one line of ASCII text. The first token names the command:
//
//	ADD <count> <rate> <mask>   queue a job
//	RM                          drop the current job
//	START                       start sampling the current job
//	STOP                        stop sampling
//	QRY <index>                 describe a queued job
//	RREG <register>             read a converter register
//	CRPT                        report whether samples were dropped
//	RST                         reset the instrument
//
// Every command except RST leaves a short response for the host to read.
package command
