package main

import "testing"

func TestParseTenants(t *testing.T) {
	cases := []struct {
		name string
		env  string
		want []string
	}{
		{"Empty", "", nil},
		{"Single", "tenant1", []string{"tenant1"}},
		{"CommaSeparated", "tenant1,tenant2,tenant3", []string{"tenant1", "tenant2", "tenant3"}},
		{"TrimsWhitespace", " tenant1 , tenant2 ", []string{"tenant1", "tenant2"}},
		{"DropsEmptyEntries", "tenant1,,tenant2,", []string{"tenant1", "tenant2"}},
		{"OnlySeparators", ",, ,", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseTenants(tc.env)
			if len(got) != len(tc.want) {
				t.Fatalf("parseTenants(%q) = %v, want %v", tc.env, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("parseTenants(%q)[%d] = %q, want %q", tc.env, i, got[i], tc.want[i])
				}
			}
		})
	}
}
