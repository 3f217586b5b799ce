package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestNewTransactionID_MonotonicAndParsable(t *testing.T) {
	t.Parallel()
	prev := NewTransactionID()
	for i := 0; i < 1000; i++ {
		next := NewTransactionID()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		if _, err := ulid.ParseStrict(next); err != nil {
			t.Fatalf("parse %s: %v", next, err)
		}
		prev = next
	}
}
