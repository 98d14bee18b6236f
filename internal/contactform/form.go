// Package contactform keeps contact form values, touched flags and inline
// errors consistent and gates submission.
package contactform

import (
	"context"
	"sync"

	"portfolio-backend/internal/domain"
)

// SubmitFunc delivers a validated submission to the outside world.
type SubmitFunc func(ctx context.Context, msg domain.NewMessage) error

// Form is the per-instance form state. The zero value is not usable; call New.
type Form struct {
	mu      sync.Mutex
	fields  map[string]string
	touched map[string]bool
	errors  map[string]string

	submitting bool
}

func New() *Form {
	f := &Form{}
	f.reset()
	return f
}

func (f *Form) reset() {
	f.fields = make(map[string]string, len(Fields))
	f.touched = make(map[string]bool, len(Fields))
	f.errors = make(map[string]string, len(Fields))
	for _, name := range Fields {
		f.fields[name] = ""
		f.touched[name] = false
		f.errors[name] = ""
	}
}

// OnChange stores value. Once a field has been touched its error is
// recomputed on every change, so corrections clear immediately.
func (f *Form) OnChange(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fields[field]; !ok {
		return
	}
	f.fields[field] = value
	if f.touched[field] {
		f.errors[field] = Validate(field, value)
	}
}

// OnBlur marks field touched and validates it.
func (f *Form) OnBlur(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fields[field]; !ok {
		return
	}
	f.touched[field] = true
	f.errors[field] = Validate(field, f.fields[field])
}

// IsValid re-runs the rules on the raw values as well as checking the held
// errors, so untouched fields cannot slip through.
func (f *Form) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validLocked()
}

func (f *Form) validLocked() bool {
	for _, name := range Fields {
		if f.errors[name] != "" || Validate(name, f.fields[name]) != "" {
			return false
		}
	}
	return true
}

// Submit touches and validates every field. When any rule fails it returns
// false without calling submit. Otherwise submit is called with the current
// values; the form resets only if submit succeeds, so a failed delivery keeps
// what the visitor typed. While one submission is in flight further calls
// return false and do nothing.
func (f *Form) Submit(ctx context.Context, submit SubmitFunc) (bool, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return false, nil
	}
	for _, name := range Fields {
		f.touched[name] = true
		f.errors[name] = Validate(name, f.fields[name])
	}
	if !f.validLocked() {
		f.mu.Unlock()
		return false, nil
	}
	msg := domain.NewMessage{
		Name:    f.fields[FieldName],
		Email:   f.fields[FieldEmail],
		Message: f.fields[FieldMessage],
	}
	f.submitting = true
	f.mu.Unlock()

	err := submit(ctx, msg)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		return false, err
	}
	f.reset()
	return true, nil
}

// Submitting reports whether a submission is in flight.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// State is a copy of the form for rendering.
type State struct {
	Fields  map[string]string
	Touched map[string]bool
	Errors  map[string]string
	Valid   bool
	// Submitting is set while a submission is in flight.
	Submitting bool
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := State{
		Fields:  make(map[string]string, len(Fields)),
		Touched: make(map[string]bool, len(Fields)),
		Errors:  make(map[string]string, len(Fields)),
		Valid:   f.validLocked(),

		Submitting: f.submitting,
	}
	for _, name := range Fields {
		s.Fields[name] = f.fields[name]
		s.Touched[name] = f.touched[name]
		s.Errors[name] = f.errors[name]
	}
	return s
}

// Value returns the current value of field.
func (f *Form) Value(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[field]
}
