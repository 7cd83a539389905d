package mpfs

// Generation phases reported through ProgressCallback.
const (
	PhaseWriting = "writing"
	PhaseMerging = "merging"
	PhaseDone    = "done"
)

// Progress reports image generation.
type Progress struct {
	// Phase is one of PhaseWriting, PhaseMerging or PhaseDone
	Phase string

	// BoardID is the board being written, -1 outside PhaseWriting
	BoardID int

	// Current is the number of images written so far
	Current int

	// Total is the number of images to write
	Total int
}

// ProgressCallback is called while images are generated.
type ProgressCallback func(Progress)

// Logger is an optional logging interface. It matches the method set of
// most structured loggers, including cosmossdk.io/log.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	fs, err := mpfs.New(hexes, mpfs.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
