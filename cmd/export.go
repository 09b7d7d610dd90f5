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
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvfunds/backblaze"
	"github.com/penny-vault/pvfunds/store"
)

var exportOutDir string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [category...]",
	Short: "Export consolidated category data to parquet files",
	Long: `The export sub-command writes one parquet file per category containing
that category's consolidated data. If backblaze credentials are configured
the files are also uploaded to the configured bucket. With no arguments
all categories are exported.`,
	Run: func(cmd *cobra.Command, args []string) {
		categories := args
		if len(categories) == 0 {
			categories = []string{store.CategoryCompany, store.CategoryQuarter, store.CategoryIndicator}
		}

		myStore, err := store.Open(viper.GetString("data.dir"), true, true)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open data library")
		}

		outDir := exportOutDir
		if outDir == "" {
			if outDir, err = os.MkdirTemp(os.TempDir(), "pvfunds-export"); err != nil {
				log.Fatal().Err(err).Msg("could not create tempdir")
			}
		}

		year := time.Now().Format("2006")
		for _, category := range categories {
			parquetFn, err := myStore.ExportParquet(category, outDir)
			if err != nil {
				log.Error().Err(err).Str("Category", category).Msg("export failed")
				continue
			}

			if viper.GetString("backblaze.application_id") != "" {
				if err := backblaze.Upload(parquetFn, viper.GetString("backblaze.bucket"), year); err != nil {
					log.Error().Err(err).Str("FileName", parquetFn).Msg("failed uploading parquet file to Backblaze")
				}
			} else {
				log.Info().Msg("skipping upload to backblaze because backblaze credentials are missing")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOutDir, "out", "", "directory to write parquet files to (default is a temporary directory)")
}
