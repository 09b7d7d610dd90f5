// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pkginfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"

	"github.com/rs/zerolog/log"
)

// Version may be overridden at release time with
// -ldflags "-X github.com/penny-vault/pvfunds/pkginfo.Version=vX.Y.Z".
var Version = "dev"

// BuildVersionString returns version info for the command line, pulling
// the commit and build time from the binary's embedded vcs metadata.
func BuildVersionString() string {
	commit, date := vcsInfo()
	return fmt.Sprintf("pvfunds %s %s/%s\n\nCommit: %s\nBuild Date: %s\nBuilt with: %s",
		Version, runtime.GOOS, runtime.GOARCH, commit, date, runtime.Version())
}

func vcsInfo() (commit, date string) {
	commit, date = "unknown", "unknown"

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, date
	}

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
		case "vcs.time":
			date = setting.Value
		}
	}

	return commit, date
}

// GetDependencyList returns every dependency linked into this program as
// `package="version"` lines, sorted by package path.
func GetDependencyList() []string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Error().Msg("could not get package build info")
		return nil
	}

	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}
	sort.Strings(deps)

	return deps
}
