package task

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// idAlphabet mirrors internal/thread's suffix alphabet so task and
// thread ids share the same visual shape, matching the task id grammar
// task_[0-9]{8}_[a-z0-9]{6}.
const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateTaskId produces an id shaped task_YYYYMMDD_xxxxxx.
func generateTaskId() string {
	id := ulid.Make()
	entropy := id.Entropy()
	b := make([]byte, 6)
	for i := range b {
		b[i] = idAlphabet[int(entropy[i])%len(idAlphabet)]
	}
	return fmt.Sprintf("task_%s_%s", time.Now().UTC().Format("20060102"), string(b))
}

// generateNoteId produces an id for a TaskNote.
func generateNoteId() string {
	return ulid.Make().String()
}
