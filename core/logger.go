package core

// Logger is any service that can log messages.
// expected args: error, map[string]interface{} or a value identifying the logged in person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user attached to a log entry.
type Person struct {
	ID       string
	Username string
	Email    string
}

type nopLogger struct{}

// NopLogger discards everything. Fatal does not exit.
var NopLogger Logger = nopLogger{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
