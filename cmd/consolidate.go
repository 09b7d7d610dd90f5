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
package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvfunds/store"
)

// consolidateCmd represents the consolidate command
var consolidateCmd = &cobra.Command{
	Use:   "consolidate [category...]",
	Short: "Rebuild category caches from per-ticker files",
	Long: `The consolidate sub-command rebuilds a category's consolidated cache from
its per-ticker CSV files. This normally happens automatically after every
fetch; run it manually after editing or deleting per-ticker files by hand.
With no arguments both the quarter and indicator caches are rebuilt.`,
	Run: func(cmd *cobra.Command, args []string) {
		categories := args
		if len(categories) == 0 {
			categories = []string{store.CategoryQuarter, store.CategoryIndicator}
		}

		myStore, err := store.Open(viper.GetString("data.dir"), false, false)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open data library")
		}

		for _, category := range categories {
			if err := myStore.Consolidate(category); err != nil {
				log.Fatal().Err(err).Str("Category", category).Msg("consolidation failed")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}
