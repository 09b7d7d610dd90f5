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
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a description of the data library in markdown
func (store *Store) Summary() (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	if _, err := builder.WriteString("# pvfunds data library\n"); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Details\n\n"); err != nil {
		return "", err
	}

	if _, err := builder.WriteString(fmt.Sprintf("Root: %s\n\n", store.Root())); err != nil {
		return "", err
	}

	numCompanies := 0
	if store.Company != nil {
		numCompanies = len(store.Company.Tickers())
	}
	if _, err := builder.WriteString(p.Sprintf("  * Companies: %d\n\n", numCompanies)); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Categories\n\n"); err != nil {
		return "", err
	}

	for _, entry := range []struct {
		name     string
		category *Category
	}{
		{CategoryQuarter, store.Quarter},
		{CategoryIndicator, store.Indicator},
	} {
		if entry.category == nil {
			if _, err := builder.WriteString(fmt.Sprintf("  * %s: not fetched\n", entry.name)); err != nil {
				return "", err
			}
			continue
		}

		numRecords := 0
		for _, table := range entry.category.Tables {
			numRecords += table.Len()
		}

		lastUpdated := store.LastUpdated(entry.name)
		updatedStr := "never"
		if !lastUpdated.Equal(time.Time{}) {
			updatedStr = fmt.Sprintf("%s (%s)", timeago.English.Format(lastUpdated), lastUpdated.Local().Format("01/02/2006"))
		}

		if _, err := builder.WriteString(p.Sprintf("  * %s: %d tickers, %d records, %d columns; updated %s\n",
			entry.name, len(entry.category.Tables), numRecords, len(entry.category.Columns), updatedStr)); err != nil {
			return "", err
		}
	}

	return builder.String(), nil
}
