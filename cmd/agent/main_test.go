package main

import "testing"

func TestHealthURLTrimsTrailingSlash(t *testing.T) {
	for _, base := range []string{"http://pos.local:8080", "http://pos.local:8080/", "http://pos.local:8080//"} {
		if got := healthURL(base); got != "http://pos.local:8080/api/health" {
			t.Fatalf("healthURL(%q) = %q", base, got)
		}
	}
}
