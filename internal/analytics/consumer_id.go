package analytics

import (
	"os"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewConsumerID names this process inside the consumer group as
// host-pid-ulid, so restarts never reuse a name that still owns pending
// entries.
func NewConsumerID() string {
	host, _ := os.Hostname()
	if host == "" {
		host = "atspro"
	}
	return strings.Join([]string{host, strconv.Itoa(os.Getpid()), strings.ToLower(ulid.Make().String())}, "-")
}
