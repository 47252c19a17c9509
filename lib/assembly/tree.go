// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assembly

import (
	"fmt"
	"slices"

	"github.com/Howard86/cwa-server/lib/bundler"
	"github.com/Howard86/cwa-server/lib/diagnosiskey"
	"github.com/Howard86/cwa-server/lib/structure"
)

// BatchExporter turns a batch into the files written for it.
// *export.Exporter implements it.
type BatchExporter interface {
	// Nodes returns the files of batch, named as ArtifactNames.
	Nodes(batch *bundler.Batch) []structure.Node
	ArtifactNames() []string
}

// batchFiles hands out the artifact nodes of each batch, exporting a
// batch at most once no matter how many versions or re-prepares
// reference it. Only used from Prepare, which is single-threaded.
type batchFiles struct {
	exporter BatchExporter
	count    int
	cache    map[*bundler.Batch][]structure.Node
}

func newBatchFiles(exporter BatchExporter) *batchFiles {
	return &batchFiles{
		exporter: exporter,
		count:    len(exporter.ArtifactNames()),
		cache:    make(map[*bundler.Batch][]structure.Node),
	}
}

func (files *batchFiles) node(batch *bundler.Batch, position int) structure.Node {
	nodes, ok := files.cache[batch]
	if !ok {
		nodes = files.exporter.Nodes(batch)
		files.cache[batch] = nodes
	}
	return nodes[position]
}

// attachBatch registers one producer per artifact file of the batch
// that lookup returns for an index value.
func attachBatch[T any](directory *structure.IndexDirectory[T], files *batchFiles,
	lookup func(value T, indices structure.Indices) (*bundler.Batch, error)) {
	for position := 0; position < files.count; position++ {
		directory.Attach(func(value T, indices structure.Indices) (structure.Node, error) {
			batch, err := lookup(value, indices)
			if err != nil || batch == nil {
				return nil, err
			}
			return files.node(batch, position), nil
		})
	}
}

// DiagnosisKeysDirectory builds the diagnosis-keys subtree over the
// configured countries. A country without batches still appears, with
// an empty date listing.
func DiagnosisKeysDirectory(result *bundler.Result, exporter BatchExporter, api API, countries []string) *structure.Directory {
	return diagnosisKeysDirectory(result, newBatchFiles(exporter), api, countries)
}

func diagnosisKeysDirectory(result *bundler.Result, files *batchFiles, api API, countries []string) *structure.Directory {
	countries = slices.Clone(countries)

	hourDirectory := func() structure.Node {
		hours := structure.NewIndexDirectory(api.HourPath, structure.IndexSpec[int]{
			Domain: func(indices structure.Indices) ([]int, error) {
				country, date, err := countryAndDate(indices)
				if err != nil {
					return nil, err
				}
				return result.Hours(country, date), nil
			},
			Format: formatHour,
		})
		attachBatch(hours, files, func(hour int, indices structure.Indices) (*bundler.Batch, error) {
			country, date, err := countryAndDate(indices)
			if err != nil {
				return nil, err
			}
			batch, _ := result.HourBatch(country, date, hour)
			return batch, nil
		})
		return structure.NewIndexing(hours, api.ListingName)
	}

	dateDirectory := func() structure.Node {
		dates := structure.NewIndexDirectory(api.DatePath, structure.IndexSpec[diagnosiskey.Date]{
			Domain: func(indices structure.Indices) ([]diagnosiskey.Date, error) {
				country, err := structure.Top[string](indices)
				if err != nil {
					return nil, err
				}
				return result.Dates(country), nil
			},
			Format: diagnosiskey.Date.String,
			Child: func(diagnosiskey.Date, structure.Indices) (structure.Node, error) {
				return hourDirectory(), nil
			},
		})
		attachBatch(dates, files, func(date diagnosiskey.Date, indices structure.Indices) (*bundler.Batch, error) {
			country, _, err := countryAndDate(indices)
			if err != nil {
				return nil, err
			}
			batch, _ := result.DayBatch(country, date)
			return batch, nil
		})
		return structure.NewIndexing(dates, api.ListingName)
	}

	countryDirectory := structure.NewIndexDirectory(api.CountryPath, structure.IndexSpec[string]{
		Domain: func(structure.Indices) ([]string, error) { return countries, nil },
		Format: func(country string) string { return country },
		Child: func(string, structure.Indices) (structure.Node, error) {
			return dateDirectory(), nil
		},
	})

	return structure.NewDirectory(api.DiagnosisKeysPath,
		structure.NewIndexing(countryDirectory, api.ListingName))
}

// countryAndDate reads the country and date chosen by the ancestors
// of a date's subtree.
func countryAndDate(indices structure.Indices) (string, diagnosiskey.Date, error) {
	date, ok := structure.Nearest[diagnosiskey.Date](indices)
	if !ok {
		return "", diagnosiskey.Date{}, fmt.Errorf("assembly: no date in index context %v", indices.Values())
	}
	country, ok := structure.Nearest[string](indices)
	if !ok {
		return "", diagnosiskey.Date{}, fmt.Errorf("assembly: no country in index context %v", indices.Values())
	}
	return country, date, nil
}

func formatHour(hour int) string {
	return fmt.Sprintf("%02d", hour)
}

// APIDirectory builds the version directory. Every version receives
// the app configuration directory (when any variant is present), the
// node from diagnosisKeys and the statistics payload (when present).
func APIDirectory(api API, payloads Payloads, diagnosisKeys structure.Producer[string]) *structure.Indexing {
	versions := slices.Clone(api.Versions)
	directory := structure.NewIndexDirectory(api.VersionPath, structure.IndexSpec[string]{
		Domain: func(structure.Indices) ([]string, error) { return versions, nil },
		Format: func(version string) string { return version },
	})

	directory.Attach(func(string, structure.Indices) (structure.Node, error) {
		configuration := structure.NewDirectory(api.AppConfigPath)
		for _, file := range []struct {
			name string
			data []byte
		}{
			{api.AppConfigFile, payloads.AppConfig},
			{api.AppConfigAndroidFile, payloads.AppConfigAndroid},
			{api.AppConfigIOSFile, payloads.AppConfigIOS},
		} {
			if file.data != nil {
				configuration.Add(structure.NewFile(file.name, file.data))
			}
		}
		if len(configuration.Children()) == 0 {
			return nil, nil
		}
		return configuration, nil
	})
	if diagnosisKeys != nil {
		directory.Attach(diagnosisKeys)
	}
	directory.Attach(func(string, structure.Indices) (structure.Node, error) {
		if payloads.Statistics == nil {
			return nil, nil
		}
		return structure.NewFile(api.StatisticsFile, payloads.Statistics), nil
	})

	return structure.NewIndexing(directory, api.ListingName)
}

// Tree returns the complete tree for one run. Batches are exported
// once even when several versions publish them.
func Tree(result *bundler.Result, exporter BatchExporter, api API, countries []string, payloads Payloads) structure.Node {
	files := newBatchFiles(exporter)
	return APIDirectory(api, payloads, func(string, structure.Indices) (structure.Node, error) {
		return diagnosisKeysDirectory(result, files, api, countries), nil
	})
}
