package kerr

import (
	"fmt"
	"log/slog"
)

type Errors struct {
	errs []KError
}

func (r *Errors) With(err ...KError) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil || len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []KError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

// Err returns nil when there are no errors, so callers can return it directly
func (r *Errors) Err() error {
	if !r.HasError() {
		return nil
	}
	return r
}

func (r *Errors) Error() string {
	if len(r.errs) == 1 {
		return r.errs[0].Error()
	}
	return fmt.Sprintf("%d errors, first: %s", len(r.errs), r.errs[0].Error())
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.errs {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
