package audit

import (
	"github.com/persistorai/changelog/internal/filter"
	"github.com/persistorai/changelog/internal/recorder"
)

// ChangeLogger turns detected changes into recorder entries, dropping the
// ones the filter rejects.
type ChangeLogger struct {
	filter  filter.Filter
	refs    func(obj any) (string, error)
	encoder recorder.Encoder
}

// NewChangeLogger creates a ChangeLogger. refs resolves object references
// when the recorder is baked.
func NewChangeLogger(f filter.Filter, refs func(obj any) (string, error), encoder recorder.Encoder) *ChangeLogger {
	if f == nil {
		f = filter.AllowAll{}
	}

	return &ChangeLogger{filter: f, refs: refs, encoder: encoder}
}

// Log records every change that passes the filter into a fresh Recorder.
func (l *ChangeLogger) Log(changes []Change) *recorder.Recorder {
	rec := recorder.New(l.encoder)

	for _, c := range changes {
		if !l.shouldLog(c) {
			continue
		}

		obj := c.Object
		rec.Record(obj, c.TypeName, func() (string, error) { return l.refs(obj) }, c.Property, c.Value)
	}

	return rec
}

func (l *ChangeLogger) shouldLog(c Change) bool {
	if !l.filter.ShouldLogType(c.TypeName) {
		return false
	}

	if c.Navigation != nil {
		return l.filter.ShouldLogNavigation(*c.Navigation)
	}

	return l.filter.ShouldLogProperty(c.TypeName, c.Property)
}
