// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"log"
	"os"

	"golang.org/x/xerrors"
)

// metadata document boilerplate, written by the receiver itself.
// Fragments between the opening marker and the terminator are
// appended verbatim, each followed by a newline.
const (
	xmlDecl  = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"
	xmlOpen  = "<CATALOG>\n"
	xmlClose = "</CATALOG>\n"
)

// unit is one in-progress output file. The handle is exclusively
// owned by the session.
type unit struct {
	f     *os.File
	bytes int64 // bytes written since the last rotation
	frags int   // fragments appended since the last rotation
	open  bool  // a document has started accumulating (xml only)
}

// Session is the assembly state machine: it tracks the image and the
// metadata document currently being written, appends fragments to
// them and rotates them to the archive on terminator packets. Both
// in-progress files are pre-opened (empty) at creation time, so a
// fragment destination always exists.
type Session struct {
	msg *log.Logger
	arc *Archive

	img unit
	xml unit

	xmlMode bool // fragments currently belong to the metadata document

	onArchive func(rec ArchiveRecord)

	tot struct {
		bytes int64
		pkts  int64
	}
}

// NewSession creates a session over the given archive layout, with
// both in-progress files created empty.
func NewSession(arc *Archive, msg *log.Logger) (*Session, error) {
	if msg == nil {
		msg = log.New(os.Stdout, "rx: ", 0)
	}
	s := &Session{msg: msg, arc: arc}

	var err error
	s.img.f, err = os.Create(arc.ImagePath())
	if err != nil {
		return nil, xerrors.Errorf("rx: could not create in-progress image file: %w", err)
	}
	s.xml.f, err = os.Create(arc.XMLPath())
	if err != nil {
		_ = s.img.f.Close()
		return nil, xerrors.Errorf("rx: could not create in-progress xml file: %w", err)
	}
	return s, nil
}

// XMLMode reports whether the session is accumulating a metadata
// document; it is the mode flag expected by Classify.
func (s *Session) XMLMode() bool { return s.xmlMode }

// Handle applies one classified packet to the session state.
//
// Append and rotation errors are fatal to the stream; a metadata
// terminator with no open document is a protocol anomaly, logged and
// skipped.
func (s *Session) Handle(pkt Packet) error {
	s.tot.pkts++
	switch pkt.Class {
	case ImageFragment:
		err := s.append(&s.img, pkt.Data)
		if err != nil {
			return xerrors.Errorf("rx: could not append image fragment: %w", err)
		}
		s.img.frags++

	case XMLFragment:
		if !s.xml.open {
			err := s.append(&s.xml, []byte(xmlDecl+xmlOpen))
			if err != nil {
				return xerrors.Errorf("rx: could not open xml document: %w", err)
			}
			s.xml.open = true
			s.xmlMode = true
		}
		err := s.append(&s.xml, pkt.Data)
		if err != nil {
			return xerrors.Errorf("rx: could not append xml fragment: %w", err)
		}
		err = s.append(&s.xml, []byte("\n"))
		if err != nil {
			return xerrors.Errorf("rx: could not append xml fragment: %w", err)
		}
		s.xml.frags++

	case ImageEOF:
		err := s.rotateImage(pkt.Data)
		if err != nil {
			return err
		}

	case XMLEOF:
		if !s.xml.open {
			s.msg.Printf("stray xml terminator (no open document)")
			s.xmlMode = false
			return nil
		}
		err := s.rotateXML()
		if err != nil {
			return err
		}

	default:
		return xerrors.Errorf("rx: unknown packet class %v", pkt.Class)
	}
	return nil
}

// append writes p to the unit in full. A short write is retried once
// on the remaining bytes before giving up.
func (s *Session) append(u *unit, p []byte) error {
	n, err := u.f.Write(p)
	if err == nil && n < len(p) {
		var m int
		m, err = u.f.Write(p[n:])
		n += m
	}
	u.bytes += int64(n)
	s.tot.bytes += int64(n)
	if err != nil {
		return err
	}
	if n < len(p) {
		return xerrors.Errorf("rx: short write (%d/%d bytes)", n, len(p))
	}
	return nil
}

// rotateImage closes the in-progress image, archives it under the
// name carried by the terminator and opens a fresh empty in-progress
// image. An empty image is archived like any other: the in-progress
// file is always open by invariant.
//
// A terminator with an unusable name (a corrupted frame) and a failed
// rename are warnings: the image keeps accumulating and the stream
// goes on.
func (s *Session) rotateImage(name []byte) error {
	oname, err := imageName(name)
	if err != nil {
		s.msg.Printf("invalid image terminator name: %+v (image keeps accumulating)", err)
		return nil
	}

	err = s.img.f.Sync()
	if err != nil {
		return xerrors.Errorf("rx: could not flush image unit: %w", err)
	}
	err = s.img.f.Close()
	if err != nil {
		return xerrors.Errorf("rx: could not close image unit: %w", err)
	}

	dst, err := s.arc.ArchiveImage(oname)
	if err != nil {
		s.msg.Printf("could not archive image %q: %+v (image keeps accumulating)", oname, err)
		f, ferr := os.OpenFile(s.arc.ImagePath(), os.O_WRONLY|os.O_APPEND, 0644)
		if ferr != nil {
			return xerrors.Errorf("rx: could not reopen in-progress image file: %w", ferr)
		}
		s.img.f = f
		return nil
	}
	s.msg.Printf("archived image %q (%d bytes, %d fragments)", dst, s.img.bytes, s.img.frags)
	s.notify(ArchiveRecord{Kind: KindImage, Name: dst, Size: s.img.bytes})

	f, err := os.Create(s.arc.ImagePath())
	if err != nil {
		return xerrors.Errorf("rx: could not reopen in-progress image file: %w", err)
	}
	s.img = unit{f: f}
	return nil
}

// rotateXML terminates the document with its closing tag and archives
// it immediately. The reference ground station deferred rotation to
// the next opening marker; rotating at the terminator instead leaves
// no completed document exposed between units.
func (s *Session) rotateXML() error {
	err := s.append(&s.xml, []byte(xmlClose))
	if err != nil {
		return xerrors.Errorf("rx: could not close xml document: %w", err)
	}
	err = s.xml.f.Sync()
	if err != nil {
		return xerrors.Errorf("rx: could not flush xml unit: %w", err)
	}
	err = s.xml.f.Close()
	if err != nil {
		return xerrors.Errorf("rx: could not close xml unit: %w", err)
	}

	dst, seq, err := s.arc.ArchiveXML()
	if err != nil {
		return err
	}
	s.msg.Printf("archived xml document %q (%d bytes, %d fragments)", dst, s.xml.bytes, s.xml.frags)
	s.notify(ArchiveRecord{Kind: KindXML, Name: dst, Seq: seq, Size: s.xml.bytes})

	f, err := os.Create(s.arc.XMLPath())
	if err != nil {
		return xerrors.Errorf("rx: could not reopen in-progress xml file: %w", err)
	}
	s.xml = unit{f: f}
	s.xmlMode = false
	return nil
}

func (s *Session) notify(rec ArchiveRecord) {
	if s.onArchive == nil {
		return
	}
	s.onArchive(rec)
}

// Close flushes and closes both in-progress units. Data accumulated
// since the last terminator stays in the in-progress files.
func (s *Session) Close() error {
	var first error
	for _, u := range []*unit{&s.img, &s.xml} {
		if u.f == nil {
			continue
		}
		err := u.f.Sync()
		if err != nil && first == nil {
			first = err
		}
		err = u.f.Close()
		if err != nil && first == nil {
			first = err
		}
		u.f = nil
	}
	s.msg.Printf("session closed (%d packets, %d bytes)", s.tot.pkts, s.tot.bytes)
	if first != nil {
		return xerrors.Errorf("rx: could not close session: %w", first)
	}
	return nil
}
