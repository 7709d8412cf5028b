package session

import (
	"errors"
	"fmt"
	"time"
)

// TeardownStep is the outcome of one release step. Skipped steps had nothing
// to release.
type TeardownStep struct {
	Name     string
	Skipped  bool
	Panicked bool
	Err      error
}

// TeardownFailure is a release step that returned an error or panicked.
type TeardownFailure struct {
	Step string
	Err  error
}

func (f *TeardownFailure) Error() string {
	return fmt.Sprintf("session: teardown %s: %v", f.Step, f.Err)
}

func (f *TeardownFailure) Unwrap() error { return f.Err }

type TeardownReport struct {
	SessionID string
	Steps     []TeardownStep
	Duration  time.Duration
}

func (r *TeardownReport) run(name string, fn func() error) {
	step := TeardownStep{Name: name}
	func() {
		defer func() {
			if p := recover(); p != nil {
				step.Panicked = true
				step.Err = fmt.Errorf("panic: %v", p)
			}
		}()
		step.Err = fn()
	}()
	r.Steps = append(r.Steps, step)
}

func (r *TeardownReport) skip(name string) {
	r.Steps = append(r.Steps, TeardownStep{Name: name, Skipped: true})
}

func (r *TeardownReport) Failures() []*TeardownFailure {
	if r == nil {
		return nil
	}
	var fs []*TeardownFailure
	for _, s := range r.Steps {
		if s.Err != nil {
			fs = append(fs, &TeardownFailure{Step: s.Name, Err: s.Err})
		}
	}
	return fs
}

// Err joins every failed step, or returns nil for a clean teardown.
func (r *TeardownReport) Err() error {
	var errs []error
	for _, f := range r.Failures() {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func (r *TeardownReport) OK() bool {
	return len(r.Failures()) == 0
}
