package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expect      Canonical
		expectError bool
	}{
		{
			name:  "scheme and host lowercased",
			input: "HTTP://Example.COM/Path",
			expect: Canonical{
				Scheme: "http", Host: "example.com", PathQuery: "/Path", Domain: "example.com",
			},
		},
		{
			name:  "default scheme when missing",
			input: "example.com/foo",
			expect: Canonical{
				Scheme: "http", Host: "example.com", PathQuery: "/foo", Domain: "example.com",
			},
		},
		{
			name:  "default port stripped",
			input: "https://example.com:443/",
			expect: Canonical{
				Scheme: "https", Host: "example.com", PathQuery: "/", Domain: "example.com",
			},
		},
		{
			name:  "non-default port kept",
			input: "https://example.com:8443/",
			expect: Canonical{
				Scheme: "https", Host: "example.com:8443", PathQuery: "/", Domain: "example.com",
			},
		},
		{
			name:  "dot segments resolved",
			input: "http://example.com/a/../b/./c",
			expect: Canonical{
				Scheme: "http", Host: "example.com", PathQuery: "/b/c", Domain: "example.com",
			},
		},
		{
			name:  "query keys sorted",
			input: "http://example.com/p?b=2&a=1",
			expect: Canonical{
				Scheme: "http", Host: "example.com", PathQuery: "/p?a=1&b=2", Domain: "example.com",
			},
		},
		{
			name:  "subdomain reduces to registrable domain",
			input: "http://www.example.co.uk/",
			expect: Canonical{
				Scheme: "http", Host: "www.example.co.uk", PathQuery: "/", Domain: "example.co.uk",
			},
		},
		{
			name:        "empty input rejected",
			input:       "",
			expectError: true,
		},
		{
			name:        "no host rejected",
			input:       "mailto:foo@example.com",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Errorf("got %+v, want %+v", got, tt.expect)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTP://Example.COM/a/../b?b=2&a=1",
		"https://sub.example.org:443/x/y/",
	}
	for _, in := range inputs {
		first, err := Normalize(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reconstructed := Reconstruct(first.Scheme, first.Host, first.PathQuery)
		second, err := Normalize(reconstructed)
		if err != nil {
			t.Fatalf("unexpected error on reconstructed input: %v", err)
		}
		if first != second {
			t.Errorf("normalize not idempotent: %+v != %+v", first, second)
		}
	}
}

func TestReconstruct(t *testing.T) {
	got := Reconstruct("https", "example.com", "/a?b=1")
	want := "https://example.com/a?b=1"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
