// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

// Package archive implements little-endian typed binary I/O with a
// magic-string-plus-version header, as used by the bucket and index
// file formats. A single Archive handle supports both directions, so
// a bucket writer can read back its own file (e.g. while shuffling)
// without a second open.
package archive

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/grailbio/base/errors"
)

// Archive is a little-endian typed binary archive backed by a single
// open file.
type Archive struct {
	f *os.File
}

// Create opens path for write-truncate, creating it if necessary.
func Create(path string) (*Archive, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.E(err, "archive.Create")
	}
	return &Archive{f: f}, nil
}

// OpenAppend opens an existing file read-write: reads are possible at
// any offset, and writes land at the current cursor (not forced to
// EOF the way os.O_APPEND would).
func OpenAppend(path string) (*Archive, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, err, "archive.OpenAppend")
		}
		return nil, errors.E(err, "archive.OpenAppend")
	}
	return &Archive{f: f}, nil
}

// Open opens path read-only. It fails with a NotExist kind if path
// does not exist.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, err, "archive.Open")
		}
		return nil, errors.E(err, "archive.Open")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.E(err, "archive.Open")
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.E(errors.Invalid, "archive.Open: "+path+" is a directory")
	}
	return &Archive{f: f}, nil
}

// WriteHeader writes magic followed by the single version byte.
func (a *Archive) WriteHeader(magic string, version uint8) error {
	if _, err := a.f.Write([]byte(magic)); err != nil {
		return errors.E(err, "archive.WriteHeader")
	}
	if _, err := a.f.Write([]byte{version}); err != nil {
		return errors.E(err, "archive.WriteHeader")
	}
	return nil
}

// ReadHeader reads the magic string (len(expectedMagic) bytes) and the
// version byte, failing with an Integrity kind if either does not
// match what was expected.
func (a *Archive) ReadHeader(expectedMagic string, expectedVersion uint8) error {
	buf := make([]byte, len(expectedMagic)+1)
	if _, err := io.ReadFull(a.f, buf); err != nil {
		return errors.E(errors.Integrity, err, "archive.ReadHeader: short header")
	}
	if string(buf[:len(expectedMagic)]) != expectedMagic {
		return errors.E(errors.Integrity, "archive.ReadHeader: bad magic "+string(buf[:len(expectedMagic)]))
	}
	if buf[len(expectedMagic)] != expectedVersion {
		return errors.E(errors.Integrity, "archive.ReadHeader: unsupported version")
	}
	return nil
}

// WriteUint8 writes a single byte.
func (a *Archive) WriteUint8(v uint8) error {
	if _, err := a.f.Write([]byte{v}); err != nil {
		return errors.E(err, "archive.WriteUint8")
	}
	return nil
}

// ReadUint8 reads a single byte. A clean end of file (no bytes read)
// is reported as io.EOF unchanged; a short read is reported as an
// Integrity error.
func (a *Archive) ReadUint8() (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(a.f, b[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.E(errors.Integrity, err, "archive.ReadUint8")
	}
	return b[0], nil
}

// WriteUint16 writes v little-endian.
func (a *Archive) WriteUint16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	if _, err := a.f.Write(b[:]); err != nil {
		return errors.E(err, "archive.WriteUint16")
	}
	return nil
}

// ReadUint16 reads a little-endian uint16. A clean end of file (no
// bytes read) is reported as io.EOF unchanged; a short read is
// reported as an Integrity error.
func (a *Archive) ReadUint16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(a.f, b[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.E(errors.Integrity, err, "archive.ReadUint16")
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// WriteUint32 writes v little-endian.
func (a *Archive) WriteUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if _, err := a.f.Write(b[:]); err != nil {
		return errors.E(err, "archive.WriteUint32")
	}
	return nil
}

// ReadUint32 reads a little-endian uint32. A clean end of file (no
// bytes read) is reported as io.EOF unchanged; a short read is
// reported as an Integrity error.
func (a *Archive) ReadUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(a.f, b[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.E(errors.Integrity, err, "archive.ReadUint32")
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// WriteUint64 writes v little-endian.
func (a *Archive) WriteUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	if _, err := a.f.Write(b[:]); err != nil {
		return errors.E(err, "archive.WriteUint64")
	}
	return nil
}

// ReadUint64 reads a little-endian uint64. A clean end of file (no
// bytes read) is reported as io.EOF unchanged, so a Codec's Decode can
// use it to detect the end of a sequence of records; a short read is
// reported as an Integrity error.
func (a *Archive) ReadUint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(a.f, b[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.E(errors.Integrity, err, "archive.ReadUint64")
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// WriteBytes writes raw bytes with no length prefix.
func (a *Archive) WriteBytes(b []byte) error {
	if _, err := a.f.Write(b); err != nil {
		return errors.E(err, "archive.WriteBytes")
	}
	return nil
}

// ReadBytes reads exactly n raw bytes. A clean end of file (no bytes
// read, only possible when n > 0) is reported as io.EOF unchanged; a
// short read is reported as an Integrity error.
func (a *Archive) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(a.f, b); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.E(errors.Integrity, err, "archive.ReadBytes")
	}
	return b, nil
}

// WriteString writes a length-prefixed (uint64 LE length) UTF-8 string.
func (a *Archive) WriteString(s string) error {
	if err := a.WriteUint64(uint64(len(s))); err != nil {
		return err
	}
	return a.WriteBytes([]byte(s))
}

// ReadString reads a length-prefixed (uint64 LE length) UTF-8 string.
func (a *Archive) ReadString() (string, error) {
	n, err := a.ReadUint64()
	if err != nil {
		return "", err
	}
	b, err := a.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadFull reads len(p) bytes, behaving like io.ReadFull but surfacing
// unexpected EOF as an Integrity error while passing plain io.EOF
// through unchanged, so callers can distinguish "clean end of file"
// from "truncated record."
func (a *Archive) ReadFull(p []byte) (int, error) {
	n, err := io.ReadFull(a.f, p)
	if err != nil && err != io.EOF {
		return n, errors.E(errors.Integrity, err, "archive.ReadFull")
	}
	return n, err
}

// Tell returns the current file offset.
func (a *Archive) Tell() (int64, error) {
	pos, err := a.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.E(err, "archive.Tell")
	}
	return pos, nil
}

// Seek moves the file cursor to an absolute offset.
func (a *Archive) Seek(pos int64) error {
	if _, err := a.f.Seek(pos, io.SeekStart); err != nil {
		return errors.E(err, "archive.Seek")
	}
	return nil
}

// Size returns the total byte length of the file.
func (a *Archive) Size() (int64, error) {
	info, err := a.f.Stat()
	if err != nil {
		return 0, errors.E(err, "archive.Size")
	}
	return info.Size(), nil
}

// Truncate shrinks or extends the underlying file to exactly n bytes.
func (a *Archive) Truncate(n int64) error {
	if err := a.f.Truncate(n); err != nil {
		return errors.E(err, "archive.Truncate")
	}
	return nil
}

// Sync flushes any OS-buffered writes to stable storage.
func (a *Archive) Sync() error {
	if err := a.f.Sync(); err != nil {
		return errors.E(err, "archive.Sync")
	}
	return nil
}

// File returns the underlying *os.File for operations that need
// direct access to the stdlib Reader/ReaderAt surface.
func (a *Archive) File() *os.File { return a.f }

// Close closes the underlying file.
func (a *Archive) Close() error {
	if err := a.f.Close(); err != nil {
		return errors.E(err, "archive.Close")
	}
	return nil
}
