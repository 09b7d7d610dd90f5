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
package data

import "sort"

// ColumnDef describes one raw column of a category: human readable name
// and the unit measurements are reported in.
type ColumnDef struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// ColumnDict maps raw column names to their definitions. The API returns
// the same dictionary for every sub-fetch of a category; divergence is
// treated as an unrecoverable inconsistency by the fetch executor.
type ColumnDict map[string]ColumnDef

// Equal reports whether two dictionaries define the same columns with the
// same metadata.
func (dict ColumnDict) Equal(other ColumnDict) bool {
	if len(dict) != len(other) {
		return false
	}

	for key, def := range dict {
		otherDef, ok := other[key]
		if !ok || def != otherDef {
			return false
		}
	}

	return true
}

// Names returns the raw column names in sorted order.
func (dict ColumnDict) Names() []string {
	names := make([]string, 0, len(dict))
	for name := range dict {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
