// Package sync implements the synchronization engine: conflict resolution
// strategies and the orchestrator that drives a full pass (download,
// upload, conflict resolution, finalize) against the server.
package sync

import "fmt"

// Strategy selects how a divergence between client and server versions of
// the same uuid is resolved.
type Strategy int

const (
	// LastWriteWins picks the version with the greater lastModified
	// timestamp; ties break on the versions' content digests so both
	// sides reach the same answer.
	LastWriteWins Strategy = iota
	ServerWins
	ClientWins
	// MergeFields keeps fields that agree and resolves differing fields
	// by LastWriteWins.
	MergeFields
	// UserChoice never auto-resolves; the entity stays in conflict until
	// someone decides.
	UserChoice
)

func (s Strategy) String() string {
	switch s {
	case LastWriteWins:
		return "last-write-wins"
	case ServerWins:
		return "server-wins"
	case ClientWins:
		return "client-wins"
	case MergeFields:
		return "merge-fields"
	case UserChoice:
		return "user-choice"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts a config string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "last-write-wins", "":
		return LastWriteWins, nil
	case "server-wins":
		return ServerWins, nil
	case "client-wins":
		return ClientWins, nil
	case "merge-fields":
		return MergeFields, nil
	case "user-choice":
		return UserChoice, nil
	default:
		return 0, fmt.Errorf("unknown conflict strategy %q", s)
	}
}

// Outcome is the decision reached for one conflict.
type Outcome int

const (
	ResolvedServer Outcome = iota
	ResolvedClient
	ResolvedMerged
	NeedsUserInput
	Failed
)

func (o Outcome) String() string {
	switch o {
	case ResolvedServer:
		return "resolved-server"
	case ResolvedClient:
		return "resolved-client"
	case ResolvedMerged:
		return "resolved-merged"
	case NeedsUserInput:
		return "needs-user-input"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
