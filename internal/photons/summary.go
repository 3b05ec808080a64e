package photons

// Outcome is the terminal state of one visited file.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeSkipped
	OutcomeImported
	OutcomePlanned
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeImported:
		return "imported"
	case OutcomePlanned:
		return "planned"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImportSummary counts the outcomes of one import run.
type ImportSummary struct {
	Imported    int
	Reimported  int // subset of Imported whose fingerprint matched a disabled record
	Skipped     int
	Ignored     int
	Planned     int // dry run only
	Failed      int
	BytesCopied int64
}

func (s *ImportSummary) add(o Outcome) {
	switch o {
	case OutcomeIgnored:
		s.Ignored++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeImported:
		s.Imported++
	case OutcomePlanned:
		s.Planned++
	case OutcomeFailed:
		s.Failed++
	}
}

// Visited returns the number of files the run looked at.
func (s *ImportSummary) Visited() int {
	return s.Imported + s.Skipped + s.Ignored + s.Planned + s.Failed
}
