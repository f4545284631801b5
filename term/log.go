package term

import (
	"context"
	"fmt"
	"log/slog"
)

// slogTerm wraps a Term as a slog.LogValuer so that terms are only
// rendered when a record is actually emitted
func slogTerm(t Term) slog.LogValuer { return termLogValuer{t} }

type termLogValuer struct{ Term }

func (l termLogValuer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("str", l.String()),
		slog.String("hash", fmt.Sprintf("%x", l.Hash())),
		slog.String("kind", l.Kind().String()),
	)
}

// SlogHandler wraps underlying so Term attributes are printed lazily
func SlogHandler(underlying slog.Handler) slog.Handler {
	return &termLogHandler{underlying: underlying}
}

type termLogHandler struct {
	underlying slog.Handler
}

func (l *termLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *termLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		newRecord.AddAttrs(wrapAttr(attr))
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func wrapAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindAny {
		return attr
	}
	switch value := attr.Value.Any().(type) {
	case Term:
		attr.Value = slog.AnyValue(slogTerm(value))
	case *Sort:
		attr.Value = slog.StringValue(value.String())
	case *KLabel:
		attr.Value = slog.StringValue(value.String())
	}
	return attr
}

func (l *termLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for i, attr := range attrs {
		attrs[i] = wrapAttr(attr)
	}
	return SlogHandler(l.underlying.WithAttrs(attrs))
}

func (l *termLogHandler) WithGroup(name string) slog.Handler {
	return SlogHandler(l.underlying.WithGroup(name))
}
