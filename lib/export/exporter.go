// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Howard86/cwa-server/lib/bundler"
	"github.com/Howard86/cwa-server/lib/codec"
	"github.com/Howard86/cwa-server/lib/signing"
	"github.com/Howard86/cwa-server/lib/structure"
)

// ErrSigning is wrapped by every failure to sign a payload. No
// payload is returned or written when it occurs.
var ErrSigning = errors.New("export: signing failed")

// Default file names of the artifacts.
const (
	DefaultPayloadName   = "export.bin"
	DefaultSignatureName = "export.sig"
	DefaultArchiveName   = "index"
)

// Config configures an Exporter.
type Config struct {
	// Signer signs every payload. Required.
	Signer signing.Signer

	// AppBundleID, AndroidPackage, VerificationKeyVersion and
	// VerificationKeyID are copied into the signature info of every
	// payload and signature.
	AppBundleID            string
	AndroidPackage         string
	VerificationKeyVersion string
	VerificationKeyID      string

	// PayloadName and SignatureName name the two artifact files.
	// Empty selects the defaults.
	PayloadName   string
	SignatureName string

	// Archive packages both artifacts into a single zip named
	// ArchiveName instead of writing them side by side.
	Archive     bool
	ArchiveName string

	// Logger receives per-batch debug logs. Nil discards them.
	Logger *slog.Logger
}

// Artifact is the signed output of one batch.
type Artifact struct {
	Payload   []byte
	Signature []byte
}

// Exporter serializes and signs batches. It is safe for concurrent
// use.
type Exporter struct {
	config Config
	info   SignatureInfo
}

// New validates config and returns an Exporter.
func New(config Config) (*Exporter, error) {
	if config.Signer == nil {
		return nil, fmt.Errorf("export: a signer is required")
	}
	if config.PayloadName == "" {
		config.PayloadName = DefaultPayloadName
	}
	if config.SignatureName == "" {
		config.SignatureName = DefaultSignatureName
	}
	if config.ArchiveName == "" {
		config.ArchiveName = DefaultArchiveName
	}
	for _, name := range []string{config.PayloadName, config.SignatureName, config.ArchiveName} {
		if err := structure.ValidateName(name); err != nil {
			return nil, fmt.Errorf("export: artifact name: %w", err)
		}
	}
	if config.PayloadName == config.SignatureName {
		return nil, fmt.Errorf("export: payload and signature share the name %q", config.PayloadName)
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{
		config: config,
		info: SignatureInfo{
			AppBundleID:            config.AppBundleID,
			AndroidPackage:         config.AndroidPackage,
			VerificationKeyVersion: config.VerificationKeyVersion,
			VerificationKeyID:      config.VerificationKeyID,
			SignatureAlgorithm:     config.Signer.Algorithm().OID(),
		},
	}, nil
}

// SignatureInfo returns the signature info embedded in every payload.
func (exporter *Exporter) SignatureInfo() SignatureInfo {
	return exporter.info
}

// Payload serializes batch without signing it. The same batch always
// yields the same bytes.
func (exporter *Exporter) Payload(batch *bundler.Batch) ([]byte, error) {
	keys := make([]Key, len(batch.Records))
	for index, record := range batch.Records {
		keys[index] = Key{
			KeyData:                    record.KeyData,
			RollingStartIntervalNumber: record.RollingStartIntervalNumber,
			RollingPeriod:              record.RollingPeriod,
			TransmissionRiskLevel:      record.TransmissionRiskLevel,
		}
	}
	payload, err := codec.MarshalFramed(Header, Export{
		StartTimestamp: batch.Start.Unix(),
		EndTimestamp:   batch.End().Unix(),
		Region:         batch.Country,
		BatchNum:       1,
		BatchSize:      1,
		SignatureInfos: []SignatureInfo{exporter.info},
		Keys:           keys,
	})
	if err != nil {
		return nil, fmt.Errorf("export: encoding %s batch of %s at %s: %w",
			batch.Granularity, batch.Country, batch.Start.Format("2006-01-02T15"), err)
	}
	return payload, nil
}

// Export serializes and signs batch.
func (exporter *Exporter) Export(batch *bundler.Batch) (Artifact, error) {
	payload, err := exporter.Payload(batch)
	if err != nil {
		return Artifact{}, err
	}
	signature, err := exporter.config.Signer.Sign(payload)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s batch of %s at %s: %v", ErrSigning,
			batch.Granularity, batch.Country, batch.Start.Format("2006-01-02T15"), err)
	}
	list, err := codec.Marshal(SignatureList{Signatures: []Signature{{
		SignatureInfo: exporter.info,
		BatchNum:      1,
		BatchSize:     1,
		Signature:     signature,
	}}})
	if err != nil {
		return Artifact{}, fmt.Errorf("export: encoding signature list: %w", err)
	}
	exporter.config.Logger.Debug("exported batch",
		"country", batch.Country,
		"granularity", batch.Granularity.String(),
		"start", batch.Start,
		"records", batch.Len(),
		"payload_bytes", len(payload),
	)
	return Artifact{Payload: payload, Signature: list}, nil
}

// Nodes returns the files representing batch in the output tree. The
// batch is exported once, on the first write of any returned node;
// the nodes share that artifact.
func (exporter *Exporter) Nodes(batch *bundler.Batch) []structure.Node {
	lazy := &lazyArtifact{exporter: exporter, batch: batch}
	if exporter.config.Archive {
		return []structure.Node{
			structure.NewLazyFile(exporter.config.ArchiveName, func() ([]byte, error) {
				artifact, err := lazy.get()
				if err != nil {
					return nil, err
				}
				return writeArchive(artifact, batch.Start, exporter.config.PayloadName, exporter.config.SignatureName)
			}),
		}
	}
	return []structure.Node{
		structure.NewLazyFile(exporter.config.PayloadName, func() ([]byte, error) {
			artifact, err := lazy.get()
			return artifact.Payload, err
		}),
		structure.NewLazyFile(exporter.config.SignatureName, func() ([]byte, error) {
			artifact, err := lazy.get()
			return artifact.Signature, err
		}),
	}
}

// ArtifactNames returns the names Nodes uses, payload first.
func (exporter *Exporter) ArtifactNames() []string {
	if exporter.config.Archive {
		return []string{exporter.config.ArchiveName}
	}
	return []string{exporter.config.PayloadName, exporter.config.SignatureName}
}

type lazyArtifact struct {
	exporter *Exporter
	batch    *bundler.Batch

	once     sync.Once
	artifact Artifact
	err      error
}

func (lazy *lazyArtifact) get() (Artifact, error) {
	lazy.once.Do(func() {
		lazy.artifact, lazy.err = lazy.exporter.Export(lazy.batch)
	})
	return lazy.artifact, lazy.err
}
