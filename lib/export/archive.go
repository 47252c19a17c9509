// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
)

// maxArchiveMember bounds the decompressed size OpenArchive accepts
// per member.
const maxArchiveMember = 64 << 20

// writeArchive packages artifact as a zip holding the payload and the
// signature under the given names. Every member carries modified as
// its timestamp, so equal inputs produce equal archives.
func writeArchive(artifact Artifact, modified time.Time, payloadName, signatureName string) ([]byte, error) {
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	members := []struct {
		name string
		data []byte
	}{
		{payloadName, artifact.Payload},
		{signatureName, artifact.Signature},
	}
	for _, member := range members {
		header := &zip.FileHeader{
			Name:     member.name,
			Method:   zip.Deflate,
			Modified: modified.UTC(),
		}
		header.SetMode(0644)
		entry, err := writer.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("export: archive member %s: %w", member.name, err)
		}
		if _, err := entry.Write(member.data); err != nil {
			return nil, fmt.Errorf("export: archive member %s: %w", member.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("export: finalizing archive: %w", err)
	}
	return buffer.Bytes(), nil
}

// OpenArchive extracts the payload and signature from an archive
// written in archive mode.
func OpenArchive(data []byte, payloadName, signatureName string) (Artifact, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Artifact{}, fmt.Errorf("export: opening archive: %w", err)
	}
	members := make(map[string][]byte, len(reader.File))
	for _, file := range reader.File {
		if file.Name != payloadName && file.Name != signatureName {
			continue
		}
		content, err := readMember(file)
		if err != nil {
			return Artifact{}, err
		}
		members[file.Name] = content
	}
	payload, ok := members[payloadName]
	if !ok {
		return Artifact{}, fmt.Errorf("export: archive has no %s", payloadName)
	}
	signature, ok := members[signatureName]
	if !ok {
		return Artifact{}, fmt.Errorf("export: archive has no %s", signatureName)
	}
	return Artifact{Payload: payload, Signature: signature}, nil
}

func readMember(file *zip.File) ([]byte, error) {
	opened, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("export: archive member %s: %w", file.Name, err)
	}
	defer opened.Close()
	content, err := io.ReadAll(io.LimitReader(opened, maxArchiveMember+1))
	if err != nil {
		return nil, fmt.Errorf("export: archive member %s: %w", file.Name, err)
	}
	if len(content) > maxArchiveMember {
		return nil, fmt.Errorf("export: archive member %s exceeds %d bytes", file.Name, maxArchiveMember)
	}
	return content, nil
}
