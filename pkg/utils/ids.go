package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var idSeq uint64

// GenMessageID returns a message identifier that sorts by creation time.
// The trailing counter keeps IDs unique when two messages share a
// nanosecond timestamp.
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%020d-%06d", n, s)
}

// GenProjectID returns a new project identifier.
func GenProjectID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("proj-%020d-%06d", n, s)
}

// GenFragmentID returns a new fragment identifier. Fragments are looked up
// by ID only, so a random UUID is fine here.
func GenFragmentID() string {
	return "frag-" + uuid.NewString()
}
