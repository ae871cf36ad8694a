package audit

import "testing"

func TestMaskDatabaseURL(t *testing.T) {
	cases := map[string]string{
		"postgres://user:hunter2@db:5432/audit": "postgres://user:***@db:5432/audit",
		"postgres://db:5432/audit":              "postgres://db:5432/audit",
	}
	for in, want := range cases {
		if got := maskDatabaseURL(in); got != want {
			t.Errorf("maskDatabaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
