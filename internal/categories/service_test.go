package categories

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spendsort/spendsort/internal/config"
)

func TestDefaultList(t *testing.T) {
	s := NewService(config.DefaultCategories)

	assert.Len(t, s.All(), 15)
	assert.Equal(t, "Income", s.All()[0])
	assert.Equal(t, "Miscellaneous", s.Fallback())
	assert.True(t, s.Contains("Dining"))
	assert.False(t, s.Contains("dining"))
}

func TestNewService_CleansInput(t *testing.T) {
	s := NewService([]string{" Food ", "", "Travel", "Food", "Other"})
	assert.Equal(t, []string{"Food", "Travel", "Other"}, s.All())
	assert.Equal(t, "Other", s.Fallback())
}

func TestEmpty(t *testing.T) {
	s := NewService(nil)
	assert.Empty(t, s.All())
	assert.Equal(t, "", s.Fallback())
}

func TestUnknown(t *testing.T) {
	s := NewService([]string{"Dining", "Miscellaneous"})
	got := s.Unknown([]string{"Dining", "Expense", "", "Crypto", "Expense", "Miscellaneous"})
	assert.Equal(t, []string{"Expense", "Crypto"}, got)
}
