package station

// Phase is a step of the wake cycle. Phases only move forward; Sampling may
// skip straight to Sleeping.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseValidating
	PhaseSampling
	PhaseUploading
	PhaseSleeping
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseValidating:
		return "validating"
	case PhaseSampling:
		return "sampling"
	case PhaseUploading:
		return "uploading"
	case PhaseSleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}
