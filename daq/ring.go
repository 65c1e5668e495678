package daq

// Corruption records data lost to ring overflow.
type Corruption struct {
	Flagged      bool
	DroppedBytes uint64
}

// Ring is the bounded sample buffer. Frames are appended whole and the
// buffer is emptied by a full drain. A Ring is not safe for concurrent
// use; the engine serializes access to it.
type Ring struct {
	buf     []byte
	length  int
	frame   int
	corrupt Corruption
}

// NewRing creates a ring of capacity bytes holding frames of frameSize.
func NewRing(capacity, frameSize int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	if frameSize <= 0 {
		frameSize = FrameSize
	}
	return &Ring{buf: make([]byte, capacity), frame: frameSize}
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int { return r.length }

// Cap returns the ring capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// Append stores frame. A frame that does not fit is dropped and counted;
// Append then returns false.
func (r *Ring) Append(frame []byte) bool {
	if r.length+len(frame) > len(r.buf) {
		r.corrupt.Flagged = true
		r.corrupt.DroppedBytes += uint64(len(frame))
		return false
	}
	r.length += copy(r.buf[r.length:], frame)
	return true
}

// Drain copies the buffered frames into dst and empties the ring. Nothing
// is copied, and the ring is left untouched, when less than one frame is
// buffered or dst cannot hold everything buffered.
func (r *Ring) Drain(dst []byte) int {
	if r.length < r.frame || len(dst) < r.length {
		return 0
	}
	n := r.length - r.length%r.frame
	copy(dst, r.buf[:n])
	r.length = 0
	return n
}

// Corruption returns the overflow record.
func (r *Ring) Corruption() Corruption { return r.corrupt }

// Discard empties the ring and keeps the overflow record.
func (r *Ring) Discard() { r.length = 0 }

// Clear empties the ring and resets the overflow record.
func (r *Ring) Clear() {
	r.length = 0
	r.corrupt = Corruption{}
}
