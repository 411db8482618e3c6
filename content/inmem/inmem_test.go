package inmem

import (
	"testing"

	"github.com/accelf/driveshare/content/test"
)

func TestInMem(t *testing.T) {
	s := New("")
	test.TestResolver(t, s, s.URI, s.URI(""))
}
