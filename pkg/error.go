package pkg

import "errors"

// USB protocol errors.
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrTimeout indicates a transfer timeout.
	ErrTimeout = errors.New("transfer timeout")

	// ErrCancelled indicates a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrProtocol indicates a protocol error.
	ErrProtocol = errors.New("protocol error")

	// ErrNotConfigured indicates the device is not configured.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidEndpoint indicates an invalid endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidRequest indicates an invalid or unsupported request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrNoMemory indicates a fixed-capacity table is exhausted.
	ErrNoMemory = errors.New("insufficient memory")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrAlreadyRunning indicates the component is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the component is not running.
	ErrNotRunning = errors.New("not running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrReset indicates a bus reset was received.
	ErrReset = errors.New("bus reset")

	// ErrDisconnected indicates the host went away during a transfer.
	ErrDisconnected = errors.New("disconnected")
)

// USBTMC transport errors.
var (
	// ErrHeaderTooShort indicates a bulk message shorter than its header.
	ErrHeaderTooShort = errors.New("usbtmc header too short")

	// ErrBadTag indicates a zero bTag or a bTagInverse that does not match.
	ErrBadTag = errors.New("usbtmc bTag mismatch")

	// ErrUnknownMessage indicates an unsupported MsgID.
	ErrUnknownMessage = errors.New("unsupported usbtmc MsgID")

	// ErrTransferTooSmall indicates a Bulk-IN request too small to carry
	// one sample frame.
	ErrTransferTooSmall = errors.New("transfer size smaller than frame")

	// ErrTransferComplete indicates a Bulk-IN request on a tag whose
	// transfer has no bytes remaining.
	ErrTransferComplete = errors.New("transfer already complete")

	// ErrTermCharUnsupported indicates a request for TermChar handling.
	ErrTermCharUnsupported = errors.New("termchar not supported")

	// ErrMessageTooLong indicates a command message exceeded its buffer.
	ErrMessageTooLong = errors.New("message too long")
)

// Acquisition errors.
var (
	// ErrQueueFull indicates the job queue has no free slot.
	ErrQueueFull = errors.New("job queue full")

	// ErrQueueEmpty indicates the job queue holds no jobs.
	ErrQueueEmpty = errors.New("job queue empty")

	// ErrFrameInvalid indicates the converter never produced a frame with
	// a valid status marker.
	ErrFrameInvalid = errors.New("invalid sample frame")
)
