// Package checkpoint reads per-experiment checkpoint archives: a zip file
// holding an ordered manifest (metadata.yaml) plus the input and
// expected-output resources it references.
package checkpoint

import (
	"context"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"gopkg.in/yaml.v3"

	appErr "cryptoj/pkg/errors"
)

const manifestName = "metadata.yaml"

// Verdict modes a checkpoint may declare.
const (
	ModeBinary       = "binary"
	ModeText         = "text"
	ModeSpecialJudge = "special-judge"
)

// Checkpoint is one test case from the manifest. Order in the manifest
// determines judging order.
type Checkpoint struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Mode   string `yaml:"mode"`
	Note   string `yaml:"note,omitempty"`
}

// Opener resolves an experiment's checkpoint path into an open archive.
type Opener interface {
	OpenArchive(ctx context.Context, path string) (*Archive, error)
}

// Archive is an open checkpoint archive. Entries are streamed individually;
// the archive is never extracted in full.
type Archive struct {
	rc      *zip.ReadCloser
	entries map[string]*zip.File
}

// Open opens a checkpoint archive on local disk.
func Open(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ArchiveInvalid, "open checkpoint archive %s failed", path)
	}
	entries := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		entries[f.Name] = f
	}
	return &Archive{rc: rc, entries: entries}, nil
}

// Manifest parses metadata.yaml into the ordered checkpoint list.
func (a *Archive) Manifest() ([]Checkpoint, error) {
	reader, err := a.Entry(manifestName)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ManifestInvalid).WithMessage("checkpoint manifest is missing")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ManifestInvalid, "read checkpoint manifest failed")
	}
	var checkpoints []Checkpoint
	if err := yaml.Unmarshal(data, &checkpoints); err != nil {
		return nil, appErr.Wrapf(err, appErr.ManifestInvalid, "parse checkpoint manifest failed")
	}
	for i, cp := range checkpoints {
		if cp.Input == "" || cp.Output == "" {
			return nil, appErr.Newf(appErr.ManifestInvalid, "checkpoint %d is missing input or output", i)
		}
		switch cp.Mode {
		case ModeBinary, ModeText, ModeSpecialJudge:
		default:
			return nil, appErr.Newf(appErr.CheckpointModeUnknown, "checkpoint %d declares unknown mode %q", i, cp.Mode)
		}
	}
	return checkpoints, nil
}

// Entry streams one archive entry.
func (a *Archive) Entry(name string) (io.ReadCloser, error) {
	f, ok := a.entries[name]
	if !ok {
		return nil, appErr.Newf(appErr.ArchiveEntryMissing, "archive entry %s not found", name)
	}
	reader, err := f.Open()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ArchiveInvalid, "open archive entry %s failed", name)
	}
	return reader, nil
}

// EntrySize returns the uncompressed size of one entry.
func (a *Archive) EntrySize(name string) (int64, error) {
	f, ok := a.entries[name]
	if !ok {
		return 0, appErr.Newf(appErr.ArchiveEntryMissing, "archive entry %s not found", name)
	}
	return int64(f.UncompressedSize64), nil
}

// Close releases the archive.
func (a *Archive) Close() error {
	return a.rc.Close()
}

// DirOpener opens archives stored under a local root directory.
type DirOpener struct {
	Root string
}

// OpenArchive opens root/path.
func (o DirOpener) OpenArchive(ctx context.Context, path string) (*Archive, error) {
	return Open(filepath.Join(o.Root, path))
}
