package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"
)

func TestIsValid(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		given    string
		expected bool
	}{
		{"3f2504e0-4f89-41d3-9a0c-0305e82c3301", true},
		{"3F2504E0-4F89-41D3-9A0C-0305E82C3301", true},
		{"", false},
		{"not-a-uuid", false},
		{"3f2504e04f8941d39a0c0305e82c3301", false},
		{"{3f2504e0-4f89-41d3-9a0c-0305e82c3301}", false},
		{"urn:uuid:3f2504e0-4f89-41d3-9a0c-0305e82c3301", false},
		{"3f2504e0-4f89-41d3-9a0c-0305e82c330g", false},
		{" 3f2504e0-4f89-41d3-9a0c-0305e82c3301", false},
	}

	for _, test := range tests {
		c.Assert(IsValid(test.given), qt.Equals, test.expected, qt.Commentf("given %q", test.given))
	}
}

func TestNormalize(t *testing.T) {
	c := qt.New(t)

	id, ok := Normalize("3F2504E0-4F89-41D3-9A0C-0305E82C3301")
	c.Assert(ok, qt.IsTrue)
	c.Assert(id, qt.Equals, "3f2504e0-4f89-41d3-9a0c-0305e82c3301")

	_, ok = Normalize("nope")
	c.Assert(ok, qt.IsFalse)
}

func TestNew(t *testing.T) {
	c := qt.New(t)

	a, err := New()
	c.Assert(err, qt.IsNil)
	b, err := New()
	c.Assert(err, qt.IsNil)

	c.Assert(IsValid(a), qt.IsTrue)
	c.Assert(a, qt.Not(qt.Equals), b)
	c.Assert(a[14], qt.Equals, byte('4'), qt.Commentf("must be a version 4 uuid: %s", a))
}

func TestCookieProvider(t *testing.T) {
	c := qt.New(t)
	p := NewCookieProvider([]byte("test-secret"), false, zerolog.Nop())

	c.Run("issues an identifier and a cookie", func(c *qt.C) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/identity", nil)

		id, err := p.Identify(rec, req)
		c.Assert(err, qt.IsNil)
		c.Assert(IsValid(id), qt.IsTrue)
		c.Assert(rec.Result().Cookies(), qt.HasLen, 1)
	})

	c.Run("returns the same identifier when the cookie is sent back", func(c *qt.C) {
		rec := httptest.NewRecorder()
		first, err := p.Identify(rec, httptest.NewRequest(http.MethodGet, "/identity", nil))
		c.Assert(err, qt.IsNil)

		req := httptest.NewRequest(http.MethodGet, "/identity", nil)
		for _, ck := range rec.Result().Cookies() {
			req.AddCookie(ck)
		}

		rec2 := httptest.NewRecorder()
		second, err := p.Identify(rec2, req)
		c.Assert(err, qt.IsNil)
		c.Assert(second, qt.Equals, first)
		c.Assert(rec2.Result().Cookies(), qt.HasLen, 0)
	})

	c.Run("issues a new identifier when the cookie was signed with another secret", func(c *qt.C) {
		other := NewCookieProvider([]byte("other-secret"), false, zerolog.Nop())
		rec := httptest.NewRecorder()
		first, err := other.Identify(rec, httptest.NewRequest(http.MethodGet, "/identity", nil))
		c.Assert(err, qt.IsNil)

		req := httptest.NewRequest(http.MethodGet, "/identity", nil)
		for _, ck := range rec.Result().Cookies() {
			req.AddCookie(ck)
		}

		second, err := p.Identify(httptest.NewRecorder(), req)
		c.Assert(err, qt.IsNil)
		c.Assert(IsValid(second), qt.IsTrue)
		c.Assert(second, qt.Not(qt.Equals), first)
	})
}
