package core

// Student identifies the logged-in student; loggers may attach it to reports.
type Student struct {
	Code  string
	Name  string
	Email string
}

// Logger is any leveled logging service.
// args may carry anything printable; a Student arg tags the report with the current user.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
