package bitrix

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", 9) + "ñandú"
	out := truncate(s, 10)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("a", 9)+"...", out)

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "electr...", truncate("electrónico", 7))
}

func TestRawPayload(t *testing.T) {
	assert.Equal(t, `{"result":false}`, string(rawPayload([]byte(`{"result":false}`))))
	assert.Equal(t, `"<b>oops</b>"`, string(rawPayload([]byte(`<b>oops</b>`))))
	assert.Equal(t, `""`, string(rawPayload(nil)))
}
