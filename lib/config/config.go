// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/Howard86/cwa-server/lib/bundler"
	"github.com/Howard86/cwa-server/lib/diagnosiskey"
	"github.com/Howard86/cwa-server/lib/signing"
	"github.com/Howard86/cwa-server/lib/structure"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "CWA_DISTRIBUTION_CONFIG"

// ErrInvalid is wrapped by every Load and Validate failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs against test keys.
	Development Environment = "development"
	// Staging is for pre-production distribution.
	Staging Environment = "staging"
	// Production publishes to the CDN origin.
	Production Environment = "production"
)

// Config is the configuration of one distribution run.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	Output    OutputConfig    `yaml:"output"`
	API       APIConfig       `yaml:"api"`
	Countries []string        `yaml:"countries"`
	Bundling  BundlingConfig  `yaml:"bundling"`
	Signature SignatureConfig `yaml:"signature"`
	Keystore  KeystoreConfig  `yaml:"keystore"`
	Payloads  PayloadsConfig  `yaml:"payloads"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Per-environment overrides, applied after the base config is
	// loaded when Environment matches.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
// Only non-zero fields replace the base values.
type Overrides struct {
	Output    *OutputConfig    `yaml:"output,omitempty"`
	Bundling  *BundlingConfig  `yaml:"bundling,omitempty"`
	Signature *SignatureConfig `yaml:"signature,omitempty"`
	Keystore  *KeystoreConfig  `yaml:"keystore,omitempty"`
}

// OutputConfig configures where and how the tree is rendered.
type OutputConfig struct {
	// Directory is the live output directory, replaced atomically by
	// every successful run. Its parent must exist.
	Directory string `yaml:"directory"`

	// Parallelism bounds concurrent subtree writes. Default: 4
	Parallelism int `yaml:"parallelism"`

	// ListingName is the file name of the index listing written into
	// every indexed directory. Default: index
	ListingName string `yaml:"listing_name"`
}

// APIConfig names the path segments and files of the API surface.
type APIConfig struct {
	VersionPath string   `yaml:"version_path"`
	Versions    []string `yaml:"versions"`

	DiagnosisKeysPath string `yaml:"diagnosis_keys_path"`
	CountryPath       string `yaml:"country_path"`
	DatePath          string `yaml:"date_path"`
	HourPath          string `yaml:"hour_path"`

	// AppConfigPath is the directory holding the app configuration
	// variants.
	AppConfigPath        string `yaml:"app_config_path"`
	AppConfigFile        string `yaml:"app_config_file"`
	AppConfigAndroidFile string `yaml:"app_config_android_file"`
	AppConfigIOSFile     string `yaml:"app_config_ios_file"`
	StatisticsFile       string `yaml:"statistics_file"`

	PayloadFile   string `yaml:"payload_file"`
	SignatureFile string `yaml:"signature_file"`

	// Archive packages payload and signature of each batch into one
	// zip named ArchiveFile.
	Archive     bool   `yaml:"archive"`
	ArchiveFile string `yaml:"archive_file"`
}

// BundlingConfig configures the batching policy.
type BundlingConfig struct {
	// MinimumBatchSize is the smallest publishable batch. Default: 140
	MinimumBatchSize int `yaml:"minimum_batch_size"`

	// Tiers lists bucket granularities finest first. Default: [hour, day]
	Tiers []string `yaml:"tiers"`

	// ExpiryPolicy delays publication of a key until this long after
	// it expired. Default: 2h
	ExpiryPolicy time.Duration `yaml:"expiry_policy"`

	// RetentionDays is the number of days of submissions kept and
	// published. Default: 14
	RetentionDays int `yaml:"retention_days"`

	// OrderingSecret seeds the order of keys inside a batch. Required
	// in production.
	OrderingSecret string `yaml:"ordering_secret"`
}

// SignatureConfig configures the signing key and the signature info
// embedded in every batch.
type SignatureConfig struct {
	Algorithm string `yaml:"algorithm"`

	// PrivateKey is a PKCS#8 PEM file, or age ciphertext of one when
	// AgeIdentity is set.
	PrivateKey  string `yaml:"private_key"`
	AgeIdentity string `yaml:"age_identity"`

	AppBundleID            string `yaml:"app_bundle_id"`
	AndroidPackage         string `yaml:"android_package"`
	VerificationKeyID      string `yaml:"verification_key_id"`
	VerificationKeyVersion string `yaml:"verification_key_version"`
}

// KeystoreConfig locates the record store.
type KeystoreConfig struct {
	Path string `yaml:"path"`
}

// PayloadsConfig lists opaque payload files published unchanged. An
// empty path leaves the payload out of the tree.
type PayloadsConfig struct {
	AppConfig        string `yaml:"app_config"`
	AppConfigAndroid string `yaml:"app_config_android"`
	AppConfigIOS     string `yaml:"app_config_ios"`
	Statistics       string `yaml:"statistics"`
}

// MetricsConfig configures the run metrics output.
type MetricsConfig struct {
	// Textfile is where run metrics are written in the Prometheus
	// text format after every run. Empty disables metrics output.
	Textfile string `yaml:"textfile"`
}

// Default returns the default configuration. The file is still
// required; defaults only fill what it leaves out.
func Default() *Config {
	return &Config{
		Environment: Development,
		Output: OutputConfig{
			Directory:   "",
			Parallelism: 4,
			ListingName: "index",
		},
		API: APIConfig{
			VersionPath:          "version",
			Versions:             []string{"v1"},
			DiagnosisKeysPath:    "diagnosis-keys",
			CountryPath:          "country",
			DatePath:             "date",
			HourPath:             "hour",
			AppConfigPath:        "configuration",
			AppConfigFile:        "app_config",
			AppConfigAndroidFile: "app_config_android",
			AppConfigIOSFile:     "app_config_ios",
			StatisticsFile:       "stats",
			PayloadFile:          "export.bin",
			SignatureFile:        "export.sig",
			ArchiveFile:          "index",
		},
		Countries: []string{"DE"},
		Bundling: BundlingConfig{
			MinimumBatchSize: 140,
			Tiers:            []string{"hour", "day"},
			ExpiryPolicy:     2 * time.Hour,
			RetentionDays:    14,
		},
		Signature: SignatureConfig{
			Algorithm: string(signing.ECDSAP256),
		},
	}
}

// Load loads configuration from the file named by the
// CWA_DISTRIBUTION_CONFIG environment variable. There is no fallback
// when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%w: %s environment variable not set; "+
			"set it to the path of the distribution config file, or use --config",
			ErrInvalid, EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over Default, applies the
// section of the selected environment and expands ${VAR} patterns in
// path fields. Files ending in .json or .jsonc may contain comments.
// Unknown keys are an error. The result is not validated; call
// Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section of the selected
// environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if output := overrides.Output; output != nil {
		if output.Directory != "" {
			c.Output.Directory = output.Directory
		}
		if output.Parallelism != 0 {
			c.Output.Parallelism = output.Parallelism
		}
		if output.ListingName != "" {
			c.Output.ListingName = output.ListingName
		}
	}

	if bundling := overrides.Bundling; bundling != nil {
		if bundling.MinimumBatchSize != 0 {
			c.Bundling.MinimumBatchSize = bundling.MinimumBatchSize
		}
		if len(bundling.Tiers) > 0 {
			c.Bundling.Tiers = bundling.Tiers
		}
		if bundling.ExpiryPolicy != 0 {
			c.Bundling.ExpiryPolicy = bundling.ExpiryPolicy
		}
		if bundling.RetentionDays != 0 {
			c.Bundling.RetentionDays = bundling.RetentionDays
		}
		if bundling.OrderingSecret != "" {
			c.Bundling.OrderingSecret = bundling.OrderingSecret
		}
	}

	if signature := overrides.Signature; signature != nil {
		replaceIfSet(&c.Signature.Algorithm, signature.Algorithm)
		replaceIfSet(&c.Signature.PrivateKey, signature.PrivateKey)
		replaceIfSet(&c.Signature.AgeIdentity, signature.AgeIdentity)
		replaceIfSet(&c.Signature.AppBundleID, signature.AppBundleID)
		replaceIfSet(&c.Signature.AndroidPackage, signature.AndroidPackage)
		replaceIfSet(&c.Signature.VerificationKeyID, signature.VerificationKeyID)
		replaceIfSet(&c.Signature.VerificationKeyVersion, signature.VerificationKeyVersion)
	}

	if overrides.Keystore != nil {
		replaceIfSet(&c.Keystore.Path, overrides.Keystore.Path)
	}
}

func replaceIfSet(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// every path field.
func (c *Config) expandVariables() {
	for _, field := range []*string{
		&c.Output.Directory,
		&c.Signature.PrivateKey,
		&c.Signature.AgeIdentity,
		&c.Keystore.Path,
		&c.Payloads.AppConfig,
		&c.Payloads.AppConfigAndroid,
		&c.Payloads.AppConfigIOS,
		&c.Payloads.Statistics,
		&c.Metrics.Textfile,
	} {
		*field = expandVars(*field)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Policy converts the bundling section into a bundler policy.
func (c *Config) Policy() (bundler.Policy, error) {
	policy := bundler.Policy{
		MinimumBatchSize: c.Bundling.MinimumBatchSize,
		ExpiryPolicy:     c.Bundling.ExpiryPolicy,
	}
	for _, name := range c.Bundling.Tiers {
		tier, err := bundler.ParseGranularity(name)
		if err != nil {
			return bundler.Policy{}, err
		}
		policy.Tiers = append(policy.Tiers, tier)
	}
	key, err := bundler.DeriveOrderingKey(c.Bundling.OrderingSecret)
	if err != nil {
		return bundler.Policy{}, err
	}
	policy.OrderingKey = key
	if err := policy.Validate(); err != nil {
		return bundler.Policy{}, err
	}
	return policy, nil
}

// RetentionCutoff returns the oldest submission hour still published
// at now.
func (c *Config) RetentionCutoff(now time.Time) time.Time {
	day := bundler.Day.Truncate(now)
	return day.AddDate(0, 0, -c.Bundling.RetentionDays)
}

// Validate checks the configuration for errors. Every problem is
// reported, joined, and the result wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		add("invalid environment: %s", c.Environment)
	}

	if c.Output.Directory == "" {
		add("output.directory is required")
	} else if filepath.Clean(c.Output.Directory) == string(filepath.Separator) {
		add("output.directory must not be the filesystem root")
	}
	if c.Output.Parallelism < 1 {
		add("output.parallelism must be at least 1, got %d", c.Output.Parallelism)
	}

	names := []struct {
		field string
		value string
	}{
		{"output.listing_name", c.Output.ListingName},
		{"api.version_path", c.API.VersionPath},
		{"api.diagnosis_keys_path", c.API.DiagnosisKeysPath},
		{"api.country_path", c.API.CountryPath},
		{"api.date_path", c.API.DatePath},
		{"api.hour_path", c.API.HourPath},
		{"api.app_config_path", c.API.AppConfigPath},
		{"api.app_config_file", c.API.AppConfigFile},
		{"api.app_config_android_file", c.API.AppConfigAndroidFile},
		{"api.app_config_ios_file", c.API.AppConfigIOSFile},
		{"api.statistics_file", c.API.StatisticsFile},
		{"api.payload_file", c.API.PayloadFile},
		{"api.signature_file", c.API.SignatureFile},
		{"api.archive_file", c.API.ArchiveFile},
	}
	for _, name := range names {
		if err := structure.ValidateName(name.value); err != nil {
			add("%s: %v", name.field, err)
		}
	}
	if c.API.PayloadFile == c.API.SignatureFile {
		add("api.payload_file and api.signature_file are both %q", c.API.PayloadFile)
	}
	batchFiles := []string{c.API.PayloadFile, c.API.SignatureFile}
	if c.API.Archive {
		batchFiles = []string{c.API.ArchiveFile}
	}
	for _, file := range batchFiles {
		// Day batches share the date directory with the hour index.
		if file == c.API.HourPath {
			add("batch file %q collides with api.hour_path", file)
		}
	}
	versionChildren := map[string]string{}
	for _, name := range []struct {
		field string
		value string
	}{
		{"api.app_config_path", c.API.AppConfigPath},
		{"api.diagnosis_keys_path", c.API.DiagnosisKeysPath},
		{"api.statistics_file", c.API.StatisticsFile},
	} {
		if other, ok := versionChildren[name.value]; ok {
			add("%s and %s are both %q", other, name.field, name.value)
		}
		versionChildren[name.value] = name.field
	}

	if len(c.API.Versions) == 0 {
		add("api.versions must list at least one version")
	}
	if err := checkUnique("api.versions", c.API.Versions, structure.ValidateName); err != nil {
		errs = append(errs, err)
	}

	if len(c.Countries) == 0 {
		add("countries must list at least one country")
	}
	if err := checkUnique("countries", c.Countries, func(code string) error {
		if !diagnosiskey.ValidCountry(code) {
			return fmt.Errorf("%q is not a two-letter upper-case country code", code)
		}
		return nil
	}); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.Policy(); err != nil {
		add("bundling: %v", err)
	}
	if c.Bundling.RetentionDays < 1 {
		add("bundling.retention_days must be at least 1, got %d", c.Bundling.RetentionDays)
	}
	if c.Environment == Production && c.Bundling.OrderingSecret == "" {
		add("bundling.ordering_secret is required in production")
	}

	if _, err := signing.ParseAlgorithm(c.Signature.Algorithm); err != nil {
		add("signature.algorithm: %v", err)
	}
	if c.Signature.PrivateKey == "" {
		add("signature.private_key is required")
	}

	if c.Keystore.Path == "" {
		add("keystore.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func checkUnique(field string, values []string, check func(string) error) error {
	seen := make(map[string]bool, len(values))
	var errs []error
	for _, value := range values {
		if err := check(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %v", field, err))
		}
		if seen[value] {
			errs = append(errs, fmt.Errorf("%s: %q listed twice", field, value))
		}
		seen[value] = true
	}
	return errors.Join(errs...)
}
