// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/xerrors"
)

const (
	curImage = "currentImage"  // in-progress image buffer
	curXML   = "currentTM.xml" // in-progress metadata document

	imgDir = "images"
	xmlDir = "xml"
)

// Archive owns the on-disk layout of a telemetry run directory: the
// fixed in-progress path per unit kind and the naming of completed
// units. The in-progress paths are reused across units; archived
// paths are unique per completed unit.
type Archive struct {
	dir string
	seq uint32 // next metadata document sequence number
}

// NewArchive prepares the run directory layout under dir and recovers
// the metadata sequence counter from any documents already archived
// there, so a restarted receiver never reuses a name.
func NewArchive(dir string) (*Archive, error) {
	for _, sub := range []string{imgDir, xmlDir} {
		err := os.MkdirAll(filepath.Join(dir, sub), 0755)
		if err != nil {
			return nil, xerrors.Errorf("rx: could not create archive directory: %w", err)
		}
	}

	arc := &Archive{dir: dir}
	seq, err := lastSeq(filepath.Join(dir, xmlDir))
	if err != nil {
		return nil, xerrors.Errorf("rx: could not recover xml sequence: %w", err)
	}
	arc.seq = seq
	return arc, nil
}

// ImagePath returns the fixed in-progress image path.
func (arc *Archive) ImagePath() string { return filepath.Join(arc.dir, curImage) }

// XMLPath returns the fixed in-progress metadata document path.
func (arc *Archive) XMLPath() string { return filepath.Join(arc.dir, curXML) }

// SetSeq bumps the metadata sequence counter to at least seq.
func (arc *Archive) SetSeq(seq uint32) {
	if seq > arc.seq {
		arc.seq = seq
	}
}

// ArchiveImage moves the in-progress image to its final path under
// name, as derived by imageName. The caller must have closed the
// in-progress handle beforehand.
func (arc *Archive) ArchiveImage(name string) (string, error) {
	dst := filepath.Join(arc.dir, imgDir, name)
	err := rename(arc.ImagePath(), dst)
	if err != nil {
		return "", xerrors.Errorf("rx: could not archive image as %q: %w", dst, err)
	}
	return dst, nil
}

// ArchiveXML moves the in-progress metadata document to its final
// sequence-numbered path and returns that path with the sequence
// number used.
func (arc *Archive) ArchiveXML() (string, uint32, error) {
	seq := arc.seq
	dst := filepath.Join(arc.dir, xmlDir, fmt.Sprintf("tm_%06d.xml", seq))
	err := rename(arc.XMLPath(), dst)
	if err != nil {
		return "", 0, xerrors.Errorf("rx: could not archive xml document as %q: %w", dst, err)
	}
	arc.seq++
	return dst, seq, nil
}

// imageName derives the archived file name from the terminator
// payload: trailing NUL padding and control bytes are dropped and the
// result must be a bare file name.
func imageName(p []byte) (string, error) {
	name := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, string(p))
	name = strings.TrimSpace(name)
	if name == "" {
		return "", xerrors.Errorf("rx: empty image archive name")
	}
	if name != filepath.Base(name) {
		return "", xerrors.Errorf("rx: invalid image archive name %q", name)
	}
	return name, nil
}

// rename moves src to dst, falling back to copy+delete when the two
// paths live on different filesystems.
func rename(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return err
	}
	err = w.Close()
	if err != nil {
		return err
	}
	return os.Remove(src)
}

// lastSeq scans dir for archived documents and returns the next free
// sequence number.
func lastSeq(dir string) (uint32, error) {
	files, err := filepath.Glob(filepath.Join(dir, "tm_*.xml"))
	if err != nil {
		return 0, err
	}
	var next uint32
	for _, fname := range files {
		var seq uint32
		_, err := fmt.Sscanf(filepath.Base(fname), "tm_%d.xml", &seq)
		if err != nil {
			continue
		}
		if seq+1 > next {
			next = seq + 1
		}
	}
	return next, nil
}
