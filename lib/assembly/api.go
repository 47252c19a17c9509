// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assembly

import (
	"fmt"
	"os"

	"github.com/Howard86/cwa-server/lib/config"
)

// API names the path segments and files of the tree.
type API struct {
	ListingName string

	VersionPath string
	Versions    []string

	DiagnosisKeysPath string
	CountryPath       string
	DatePath          string
	HourPath          string

	AppConfigPath        string
	AppConfigFile        string
	AppConfigAndroidFile string
	AppConfigIOSFile     string
	StatisticsFile       string
}

// NewAPI takes the layout from a validated configuration.
func NewAPI(cfg *config.Config) API {
	return API{
		ListingName:          cfg.Output.ListingName,
		VersionPath:          cfg.API.VersionPath,
		Versions:             append([]string(nil), cfg.API.Versions...),
		DiagnosisKeysPath:    cfg.API.DiagnosisKeysPath,
		CountryPath:          cfg.API.CountryPath,
		DatePath:             cfg.API.DatePath,
		HourPath:             cfg.API.HourPath,
		AppConfigPath:        cfg.API.AppConfigPath,
		AppConfigFile:        cfg.API.AppConfigFile,
		AppConfigAndroidFile: cfg.API.AppConfigAndroidFile,
		AppConfigIOSFile:     cfg.API.AppConfigIOSFile,
		StatisticsFile:       cfg.API.StatisticsFile,
	}
}

// Payloads holds the opaque files published next to the diagnosis
// keys. A nil payload is left out of the tree.
type Payloads struct {
	AppConfig        []byte
	AppConfigAndroid []byte
	AppConfigIOS     []byte
	Statistics       []byte
}

// LoadPayloads reads every configured payload file. An unreadable
// configured file is an error; an unconfigured one stays nil.
func LoadPayloads(cfg config.PayloadsConfig) (Payloads, error) {
	var payloads Payloads
	for _, payload := range []struct {
		name   string
		path   string
		target *[]byte
	}{
		{"app_config", cfg.AppConfig, &payloads.AppConfig},
		{"app_config_android", cfg.AppConfigAndroid, &payloads.AppConfigAndroid},
		{"app_config_ios", cfg.AppConfigIOS, &payloads.AppConfigIOS},
		{"statistics", cfg.Statistics, &payloads.Statistics},
	} {
		if payload.path == "" {
			continue
		}
		data, err := os.ReadFile(payload.path)
		if err != nil {
			return Payloads{}, fmt.Errorf("assembly: reading %s payload: %w", payload.name, err)
		}
		*payload.target = data
	}
	return payloads, nil
}
