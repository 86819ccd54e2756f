// internal/selftest/fake_test.go
package selftest

import (
	"errors"
	"io"
	"log/slog"
)

// fakeBackend needs `slices` RunSlice calls per sweep unless configured one-shot.
type fakeBackend struct {
	name   string
	trace  *[]string
	slices int

	runErr  error
	failOn  int     // RunSlice call number (1-based) that reports Failed
	lie     *Status // returned by RunSlice with a nil error
	initSt  Status
	resetSt Status
	cfgErr  error

	pos      int
	runs     int
	inits    int
	configs  int
	resets   int
	lastPlan Plan
}

func (f *fakeBackend) Init() (Status, error) {
	f.inits++
	return f.initSt, nil
}

func (f *fakeBackend) Configure(p Plan) (Status, error) {
	f.configs++
	f.lastPlan = p
	f.pos = 0
	if f.cfgErr != nil {
		return Error, f.cfgErr
	}
	return NotTested, nil
}

func (f *fakeBackend) RunSlice() (Status, error) {
	f.runs++
	if f.trace != nil {
		*f.trace = append(*f.trace, f.name)
	}
	if f.runErr != nil {
		return Error, f.runErr
	}
	if f.failOn != 0 && f.runs == f.failOn {
		return Failed, nil
	}
	if f.lie != nil {
		return *f.lie, nil
	}

	n := f.slices
	if n == 0 {
		n = 1
	}
	if f.lastPlan.SectionsPerSlice == AllSections {
		f.pos = n
	} else {
		f.pos++
	}
	if f.pos >= n {
		return Passed, nil
	}
	return PartialPassed, nil
}

func (f *fakeBackend) Reset() (Status, error) {
	f.resets++
	f.pos = 0
	return f.resetSt, nil
}

func statusPtr(s Status) *Status { return &s }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unitErrors flattens joined errors into the unit errors they carry.
func unitErrors(err error) []*UnitError {
	var out []*UnitError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		var ue *UnitError
		if u, ok := e.(*UnitError); ok {
			out = append(out, u)
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, x := range j.Unwrap() {
				walk(x)
			}
			return
		}
		if errors.As(e, &ue) {
			out = append(out, ue)
		}
	}
	walk(err)
	return out
}
