package visitors_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"blogstats/internal/visitors"
)

func TestResolveVisitor(t *testing.T) {
	salt := "test-salt"

	t.Run("reuses a well-formed cookie", func(t *testing.T) {
		cookie := "7c9e6679-7425-40de-944b-e07fc1f90ae7"

		identity := visitors.ResolveVisitor(cookie, "203.0.113.5", salt)

		assert.Equal(t, cookie, identity.VisitorID)
		assert.False(t, identity.IsNew)
	})

	t.Run("issues a new id without a cookie", func(t *testing.T) {
		identity := visitors.ResolveVisitor("", "203.0.113.5", salt)

		assert.True(t, identity.IsNew)
		assert.True(t, visitors.IsWellFormed(identity.VisitorID))
	})

	t.Run("issues a new id for a malformed cookie", func(t *testing.T) {
		for _, cookie := range []string{"abc", "not-a-uuid-but-thirty-six-chars-long", "{7c9e6679-7425-40de-944b-e07fc1f90ae7}"} {
			identity := visitors.ResolveVisitor(cookie, "203.0.113.5", salt)
			assert.True(t, identity.IsNew, cookie)
			assert.NotEqual(t, cookie, identity.VisitorID)
		}
	})

	t.Run("new ids are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			seen[visitors.ResolveVisitor("", "203.0.113.5", salt).VisitorID] = true
		}
		assert.Len(t, seen, 100)
	})
}

func TestHashIP(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, visitors.HashIP("192.168.1.1", "s"), visitors.HashIP("192.168.1.1", "s"))
	})

	t.Run("never contains the raw IP", func(t *testing.T) {
		for _, ip := range []string{"192.168.1.1", "2001:db8::1", "unknown", ""} {
			hash := visitors.HashIP(ip, "s")
			assert.Len(t, hash, 64)
			assert.NotEqual(t, ip, hash)
			if ip != "" {
				assert.False(t, strings.Contains(hash, ip))
			}
		}
	})

	t.Run("depends on the salt and the IP", func(t *testing.T) {
		assert.NotEqual(t, visitors.HashIP("192.168.1.1", "a"), visitors.HashIP("192.168.1.1", "b"))
		assert.NotEqual(t, visitors.HashIP("192.168.1.1", "a"), visitors.HashIP("192.168.1.2", "a"))
	})
}
