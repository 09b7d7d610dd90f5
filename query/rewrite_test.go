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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteLongestMatchFirst(t *testing.T) {
	// "ab" must be replaced as a whole before "a" is considered
	got := RewriteColumns("ab+a", []string{"a", "ab"})
	assert.Equal(t, `["ab"]+["a"]`, got)
}

func TestRewriteDoesNotTouchStringLiterals(t *testing.T) {
	got := RewriteColumns(`category=="ab"`, []string{"category", "ab"})
	assert.Equal(t, `["category"]=="ab"`, got)
}

func TestRewriteSingleQuotedLiterals(t *testing.T) {
	got := RewriteColumns(`category=='ab'`, []string{"category", "ab"})
	assert.Equal(t, `["category"]=='ab'`, got)
}

func TestRewriteRepeatedOccurrences(t *testing.T) {
	got := RewriteColumns("net_sales/net_sales", []string{"net_sales"})
	assert.Equal(t, `["net_sales"]/["net_sales"]`, got)
}

func TestRewriteInsideCall(t *testing.T) {
	got := RewriteColumns("cagr(net_sales, n=5)", []string{"net_sales"})
	assert.Equal(t, `cagr(["net_sales"], n=5)`, got)
}

func TestRewriteUnknownColumnsUntouched(t *testing.T) {
	got := RewriteColumns("mystery+1", []string{"net_sales"})
	assert.Equal(t, "mystery+1", got)
}

func TestReferencedColumns(t *testing.T) {
	exprs := []string{"net_sales/per", "cagr(net_sales)"}
	columns := []string{"net_sales", "per", "pbr"}

	assert.Equal(t, []string{"net_sales", "per"}, ReferencedColumns(exprs, columns))
}

func TestReferencedColumnsNone(t *testing.T) {
	assert.Empty(t, ReferencedColumns([]string{"1+1"}, []string{"net_sales"}))
}
