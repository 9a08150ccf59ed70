// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tmrx

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/moses-daq/tmrx"
	for _, tc := range []struct {
		name    string
		b       *debug.BuildInfo
		version string
		sum     string
	}{
		{
			name: "nil",
		},
		{
			name: "no-deps",
			b:    &debug.BuildInfo{},
		},
		{
			name: "other-deps",
			b: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: "golang.org/x/sys", Version: "v0.7.0", Sum: "h1:xxx"},
			}},
		},
		{
			name: "plain",
			b: &debug.BuildInfo{Deps: []*debug.Module{
				{Path: root, Version: "v0.1.0", Sum: "h1:deadbeef"},
			}},
			version: "v0.1.0",
			sum:     "h1:deadbeef",
		},
		{
			name: "replace-version",
			b: &debug.BuildInfo{Deps: []*debug.Module{
				{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{Version: "v0.2.0", Sum: "h1:cafe"},
				},
			}},
			version: "v0.2.0",
			sum:     "h1:cafe",
		},
		{
			name: "replace-path-version",
			b: &debug.BuildInfo{Deps: []*debug.Module{
				{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{Path: "example.com/tmrx", Version: "v0.2.0", Sum: "h1:cafe"},
				},
			}},
			version: "example.com/tmrx v0.2.0",
			sum:     "h1:cafe",
		},
		{
			name: "replace-path",
			b: &debug.BuildInfo{Deps: []*debug.Module{
				{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{Path: "example.com/tmrx"},
				},
			}},
			version: "example.com/tmrx",
		},
		{
			name: "replace-local",
			b: &debug.BuildInfo{Deps: []*debug.Module{
				{
					Path: root, Version: "v0.1.0",
					Replace: &debug.Module{},
				},
			}},
			version: "v0.1.0*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.b)
			if got, want := version, tc.version; got != want {
				t.Fatalf("invalid version: got=%q, want=%q", got, want)
			}
			if got, want := sum, tc.sum; got != want {
				t.Fatalf("invalid sum: got=%q, want=%q", got, want)
			}
		})
	}
}
