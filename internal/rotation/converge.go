package rotation

import (
	"context"
	"log"

	"github.com/vicfd/rsamanager/internal/logutil"
	"github.com/vicfd/rsamanager/internal/remoteexec"
)

// PhaseRunner runs one attempt of a phase. *remoteexec.Adapter satisfies it.
type PhaseRunner interface {
	RunPhase(ctx context.Context, op remoteexec.Operation, hosts []string) map[string]remoteexec.Outcome
}

// Converge runs op against hosts until every host has succeeded once or
// maxAttempts attempts have been made. Each attempt only targets hosts that
// have not succeeded yet; there is no delay between attempts. The result
// holds true for every converged host and false for the rest.
//
// Cancelling ctx stops further attempts but never interrupts one in flight
// beyond what the runner itself does with ctx.
func Converge(ctx context.Context, runner PhaseRunner, op remoteexec.Operation, hosts []string, maxAttempts int) map[string]bool {
	result := make(map[string]bool, len(hosts))
	pending := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if _, dup := result[h]; dup {
			continue
		}
		result[h] = false
		pending = append(pending, h)
	}

	for attempt := 1; attempt <= maxAttempts && len(pending) > 0; attempt++ {
		if err := ctx.Err(); err != nil {
			log.Printf("[rotation] %s: stopping before attempt %d: %v", op, attempt, err)
			break
		}

		outcomes := runner.RunPhase(ctx, op, pending)

		next := pending[:0:0]
		for _, h := range pending {
			if outcomes[h] == remoteexec.Success {
				result[h] = true
				continue
			}
			next = append(next, h)
		}
		log.Printf("[rotation] %s attempt %d/%d: %d converged, %d pending",
			op, attempt, maxAttempts, len(pending)-len(next), len(next))
		pending = next
	}

	if len(pending) > 0 {
		log.Printf("[rotation] %s: giving up on %s", op, logutil.SanitizeAll(pending))
	}
	return result
}
