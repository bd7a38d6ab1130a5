package audio

// Device is an audio input the recorder can open lines on. Formats is
// queried fresh on every selection; implementations must not cache it
// across device changes.
type Device interface {
	Formats() ([]CaptureFormat, error)
	// Open prepares a capture line for f. It returns an error wrapping
	// ErrUnsupportedFormat when the platform cannot capture in f.
	Open(f CaptureFormat) (Line, error)
}

// Line is an opened capture stream.
//
// Read blocks until data is available and returns n <= 0 once the line has
// been closed. Stop, Drain, and Close may be called from a goroutine other
// than the reader; Close must unblock a pending Read.
type Line interface {
	Start() error
	Read(p []byte) (int, error)
	Stop() error
	Drain() error
	Close() error
	// BufferSize is the platform's internal buffer size in bytes.
	BufferSize() int
}
