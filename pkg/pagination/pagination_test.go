package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=10&offset=5", 10, 5},
		{"?limit=-1&offset=-4", DefaultLimit, 0},
		{"?limit=100000", MaxLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}
	e := echo.New()
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		p := FromContext(c)
		if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
			t.Errorf("%q: got limit=%d offset=%d, want %d/%d", tt.query, p.Limit, p.Offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	r := Page(items, Params{Limit: 2, Offset: 1})
	if r.Total != 5 || len(r.Data) != 2 || r.Data[0] != 2 || !r.HasMore {
		t.Errorf("unexpected page: %+v", r)
	}

	r = Page(items, Params{Limit: 10, Offset: 3})
	if len(r.Data) != 2 || r.HasMore {
		t.Errorf("unexpected last page: %+v", r)
	}

	r = Page(items, Params{Limit: 10, Offset: 50})
	if r.Data == nil || len(r.Data) != 0 {
		t.Errorf("expected empty non-nil data, got %#v", r.Data)
	}

	empty := Page([]string(nil), Params{Limit: 10})
	if empty.Data == nil || empty.Total != 0 {
		t.Errorf("expected empty page, got %+v", empty)
	}
}
