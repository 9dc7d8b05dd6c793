package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractString(t *testing.T) {
	list := []any{"email", "a@x.com", "count", 3, "request_id", "req-1"}

	assert.Equal(t, "a@x.com", ExtractString(list, "email"))
	assert.Equal(t, "req-1", ExtractString(list, "request_id"))
	assert.Empty(t, ExtractString(list, "count"), "non-string value")
	assert.Empty(t, ExtractString(list, "missing"))
	assert.Empty(t, ExtractString([]any{"dangling"}, "dangling"))
}
