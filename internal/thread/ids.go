package thread

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/opencode-ai/lace/internal/store"
)

// idAlphabet is the lowercase-alphanumeric suffix alphabet used by
// generateThreadId, matching the thread id grammar
// lace_[0-9]{8}_[a-z0-9]{6}.
const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateThreadId produces a root thread id shaped lace_YYYYMMDD_xxxxxx,
// where xxxxxx is a 6-character lowercase-alphanumeric suffix derived
// from a ulid's entropy bytes. The suffix is random and is not checked
// against existing ids.
func generateThreadId() string {
	return fmt.Sprintf("lace_%s_%s", time.Now().UTC().Format("20060102"), randomSuffix())
}

func randomSuffix() string {
	id := ulid.Make()
	entropy := id.Entropy()
	b := make([]byte, 6)
	for i := range b {
		b[i] = idAlphabet[int(entropy[i])%len(idAlphabet)]
	}
	return string(b)
}

// generateDelegateThreadId allocates the next ".N" child id under parentID
// by scanning the store for existing children that already carry events.
// A candidate suffix is reused (not skipped) if it was allocated but never
// had an event appended to it, per spec §8 scenario 1's "re-uses a suffix
// only when no events exist under it" rule.
func generateDelegateThreadId(ctx context.Context, st *store.ThreadStore, parentID string) (string, error) {
	n := 1
	for {
		candidate := fmt.Sprintf("%s.%d", parentID, n)
		events, err := st.ListEvents(ctx, candidate, nil)
		if err != nil {
			return "", err
		}
		if len(events) == 0 {
			return candidate, nil
		}
		n++
	}
}
