package ingest

import "fmt"

// State tracks an ingestion through its stages. Every state other than
// Committed can fall through to RolledBack, which guarantees that all
// artifacts written by the invocation have been (best-effort) removed.
type State int

const (
	Received State = iota
	Validated
	Stored
	Probed
	Thumbnailed
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Received:
		return fmt.Sprintf("RECEIVED[%d]", s)
	case Validated:
		return fmt.Sprintf("VALIDATED[%d]", s)
	case Stored:
		return fmt.Sprintf("STORED[%d]", s)
	case Probed:
		return fmt.Sprintf("PROBED[%d]", s)
	case Thumbnailed:
		return fmt.Sprintf("THUMBNAILED[%d]", s)
	case Committed:
		return fmt.Sprintf("COMMITTED[%d]", s)
	case RolledBack:
		return fmt.Sprintf("ROLLED_BACK[%d]", s)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", s)
	}
}
