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
package query

import (
	"fmt"
	"sort"
	"strings"
)

// ReferencedColumns returns the subset of columns textually referenced by
// any of the expressions, in stable order.
func ReferencedColumns(exprs []string, columns []string) []string {
	var referenced []string
	for _, column := range columns {
		for _, expr := range exprs {
			if strings.Contains(expr, column) {
				referenced = append(referenced, column)
				break
			}
		}
	}
	return referenced
}

// RewriteColumns replaces every occurrence of a column name in expr with a
// bracketed column reference (["name"]). Longer names are replaced first
// so a column that is a substring of another is never partially replaced,
// and spans inside quoted string literals are left untouched. The quoted
// name inside the bracket form also shields it from later, shorter
// replacements.
func RewriteColumns(expr string, columns []string) string {
	ordered := append([]string{}, columns...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})

	for _, column := range ordered {
		expr = replaceOutsideQuotes(expr, column, fmt.Sprintf(`["%s"]`, column))
	}

	return expr
}

// replaceOutsideQuotes substitutes old with new in every span of s that is
// not inside a single- or double-quoted string literal.
func replaceOutsideQuotes(s, old, new string) string {
	var b strings.Builder

	i := 0
	for i < len(s) {
		if c := s[i]; c == '\'' || c == '"' {
			j := i + 1
			for j < len(s) && s[j] != c {
				j++
			}
			if j < len(s) {
				j++
			}
			b.WriteString(s[i:j])
			i = j
			continue
		}

		j := i
		for j < len(s) && s[j] != '\'' && s[j] != '"' {
			j++
		}
		b.WriteString(strings.ReplaceAll(s[i:j], old, new))
		i = j
	}

	return b.String()
}
