package extension

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report summarizes one AutoLoad pass.
type Report struct {
	// Run identifies the pass.
	Run uuid.UUID

	Packages []string
	Loaded   []string
	Reloaded []string
	Failed   []*LoadFault

	// TornDown counts registrations undone before reloads.
	TornDown int
	// Carried counts registrations kept across reloads under ReloadAccumulate.
	Carried int

	Started  time.Time
	Finished time.Time
}

func newReport(packages []string) *Report {
	return &Report{
		Run:      uuid.New(),
		Packages: append([]string(nil), packages...),
		Started:  time.Now(),
	}
}

// Err joins the faults of the pass, or returns nil.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Summary returns a one-line description of the pass.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d loaded, %d reloaded, %d failed",
		len(r.Loaded), len(r.Reloaded), len(r.Failed))
}
