package oaskema_test

import (
	"testing"

	"github.com/reoring/oaskema"
)

func TestPath_Render(t *testing.T) {
	var root oaskema.Path
	cases := []struct {
		p       oaskema.Path
		str     string
		pointer string
	}{
		{root, "#", "/"},
		{root.Key("baskets"), "baskets", "/baskets"},
		{root.Key("baskets").Index(0).Key("name"), "baskets[0].name", "/baskets/0/name"},
		{root.Index(2), "[2]", "/2"},
		{root.Key("a/b").Key("c~d"), "a/b.c~d", "/a~1b/c~0d"},
	}
	for _, tc := range cases {
		if got := tc.p.String(); got != tc.str {
			t.Errorf("String: want %q got %q", tc.str, got)
		}
		if got := tc.p.Pointer(); got != tc.pointer {
			t.Errorf("Pointer: want %q got %q", tc.pointer, got)
		}
	}
}

func TestPath_ExtendDoesNotAlias(t *testing.T) {
	base := oaskema.Path{}.Key("a").Key("b")
	x := base.Key("x")
	y := base.Key("y")
	if x.String() != "a.b.x" || y.String() != "a.b.y" {
		t.Fatalf("got %s and %s", x, y)
	}
}
