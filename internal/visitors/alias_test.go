package visitors_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogstats/internal/visitors"
)

func TestAliaser(t *testing.T) {
	t.Run("same visitor id gives the same alias", func(t *testing.T) {
		id := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
		assert.Equal(t, visitors.DefaultAliaser.Alias(id), visitors.DefaultAliaser.Alias(id))
	})

	t.Run("alias words come from the visitor id bytes", func(t *testing.T) {
		aliaser, err := visitors.NewAliaser([]string{"Red", "Blue", "Green"}, []string{"Cat", "Dog"})
		require.NoError(t, err)

		assert.Equal(t, "Red Cat", aliaser.Alias("00000000-0000-4000-8000-000000000000"))
		assert.Equal(t, "Blue Cat", aliaser.Alias("00000001-0000-4000-8000-000000000000"))
		assert.Equal(t, "Green Dog", aliaser.Alias("00000002-0000-4000-8000-000000010000"))
		assert.Equal(t, "Red Dog", aliaser.Alias("00000003-0000-4000-8000-000000030000"))
	})

	t.Run("non-uuid ids still get a stable alias", func(t *testing.T) {
		alias := visitors.DefaultAliaser.Alias("seeded-visitor")
		assert.Regexp(t, `^[A-Z][a-z]+ [A-Z][a-z]+$`, alias)
		assert.Equal(t, alias, visitors.DefaultAliaser.Alias("seeded-visitor"))
	})

	t.Run("aliases are spread across combinations", func(t *testing.T) {
		aliases := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			alias := visitors.DefaultAliaser.Alias(uuid.NewString())
			assert.Regexp(t, `^[A-Z][a-z]+ [A-Z][a-z]+$`, alias)
			aliases[alias] = true
		}
		assert.Greater(t, len(aliases), 100)

		fromNames := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			fromNames[visitors.DefaultAliaser.Alias(fmt.Sprintf("visitor-%d", i))] = true
		}
		assert.Greater(t, len(fromNames), 100)
	})

	t.Run("rejects empty word lists", func(t *testing.T) {
		_, err := visitors.NewAliaser(nil, []string{"Cat"})
		assert.Error(t, err)

		_, err = visitors.NewAliaser([]string{"Red"}, nil)
		assert.Error(t, err)
	})
}
