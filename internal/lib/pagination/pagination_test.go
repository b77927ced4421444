package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query      string
		want       Params
		wantOffset int
	}{
		{"", Params{Page: 1, Limit: DefaultLimit}, 0},
		{"?page=3&limit=10", Params{Page: 3, Limit: 10}, 20},
		{"?page=-1&limit=1000", Params{Page: 1, Limit: DefaultLimit}, 0},
		{"?page=abc&limit=5", Params{Page: 1, Limit: 5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/items"+tt.query, nil)
			got := FromRequest(r)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOffset, got.Offset())
		})
	}
}
