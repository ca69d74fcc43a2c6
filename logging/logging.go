// Package logging supplies the default mseedpack.Logger adapter. The
// core packer depends only on the small interface it defines in
// mseedpack.Logger (spec.md lists the logging sink as an out-of-scope
// external collaborator); this package is the concrete collaborator the
// example CLI wires in, backed by logrus the way the rest of
// the reference pack's services report errors.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logrus adapts a *logrus.Entry to mseedpack.Logger.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus wraps a *logrus.Logger (or nil for the package-level
// standard logger) as a mseedpack.Logger.
func NewLogrus(l *logrus.Logger) Logrus {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logrus{entry: logrus.NewEntry(l)}
}

// Errorf implements mseedpack.Logger.
func (l Logrus) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// WithField returns a Logrus logger with an additional structured field,
// matching the contextual-field style the teacher's server package uses
// around its slog calls.
func (l Logrus) WithField(key string, value interface{}) Logrus {
	return Logrus{entry: l.entry.WithField(key, value)}
}
