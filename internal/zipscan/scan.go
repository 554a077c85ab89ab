// Package zipscan locates and decompresses the single top-level
// info.json entry inside a mod's packaged zip, reading only the
// central directory and that one entry's bytes rather than the whole
// archive. It is meant to run over an io.ReadSeeker backed by a ranged
// HTTP reader, so every seek matters.
package zipscan

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"io"
	"strings"
)

const (
	eocdSignature         = 0x0605_4b50
	centralDirSignature   = 0x0201_4b50
	localHeaderSignature  = 0x0403_4b50
	eocdMinLen            = 22
	maxCommentLen         = 0xffff
	methodStored   uint16 = 0
	methodDeflated uint16 = 8
)

type fileMeta struct {
	filename          []byte
	compressionMethod uint16
	crc32             uint32
	compressedSize    uint64
	uncompressedSize  uint64
}

func (a fileMeta) equal(b fileMeta) bool {
	return bytes.Equal(a.filename, b.filename) &&
		a.compressionMethod == b.compressionMethod &&
		a.crc32 == b.crc32 &&
		a.compressedSize == b.compressedSize &&
		a.uncompressedSize == b.uncompressedSize
}

type centralDirectoryEntry struct {
	fileMeta
	localHeaderPos uint64
}

// FindInfoJSON walks the end-of-central-directory record and central
// directory of r to find the archive's single top-level */info.json
// entry, then decompresses and returns its bytes. r must support
// io.SeekEnd, io.SeekStart, and io.SeekCurrent.
func FindInfoJSON(r io.ReadSeeker) ([]byte, error) {
	centralDirPos, numEntries, err := findEndOfCentralDirectory(r)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(int64(centralDirPos), io.SeekStart); err != nil {
		return nil, errIO(err)
	}

	if numEntries == 0 {
		return nil, &Error{Kind: KindFileNotFound}
	}

	var found *centralDirectoryEntry
	for i := 0; i < numEntries; i++ {
		entry, err := parseCentralDirectoryEntry(r, i)
		if err != nil {
			return nil, err
		}
		if isTopLevelInfoJSON(entry.filename) {
			found = entry
			break
		}
	}
	if found == nil {
		return nil, &Error{Kind: KindFileNotFound}
	}

	if _, err := r.Seek(int64(found.localHeaderPos), io.SeekStart); err != nil {
		return nil, errIO(err)
	}
	localMeta, err := parseLocalHeader(r, found.fileMeta)
	if err != nil {
		return nil, err
	}
	if !localMeta.equal(found.fileMeta) {
		return nil, &Error{Kind: KindFileMetadataCorrupt}
	}

	compressed := make([]byte, localMeta.compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, errIO(err)
	}

	data, err := decompress(found.compressionMethod, compressed, found.crc32)
	if err != nil {
		return nil, err
	}

	if !json.Valid(data) {
		return nil, &Error{Kind: KindFileInvalidJSON}
	}
	return data, nil
}

// findEndOfCentralDirectory scans backward from EOF looking for the
// EOCD magic, since the only fixed point in a zip is the end of the
// file and the record's length varies with its trailing comment.
func findEndOfCentralDirectory(r io.ReadSeeker) (centralDirPos uint64, numEntries int, _ error) {
	fileLen, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, errIO(err)
	}
	if fileLen < eocdMinLen {
		return 0, 0, &Error{Kind: KindEndOfCentralDirectoryRecordNotFound}
	}

	eocdStartMin := uint64(0)
	if fileLen > eocdMinLen+maxCommentLen {
		eocdStartMin = uint64(fileLen) - eocdMinLen - maxCommentLen
	}
	eocdStart := uint64(fileLen) - eocdMinLen

	for {
		if _, err := r.Seek(int64(eocdStart), io.SeekStart); err != nil {
			return 0, 0, errIO(err)
		}
		sig, err := readU32LE(r)
		if err != nil {
			return 0, 0, err
		}
		if sig == eocdSignature {
			if _, err := r.Seek(16, io.SeekCurrent); err != nil {
				return 0, 0, errIO(err)
			}
			commentLen, err := readU16LE(r)
			if err != nil {
				return 0, 0, err
			}
			if eocdStart+eocdMinLen+uint64(commentLen) == uint64(fileLen) {
				if _, err := r.Seek(int64(eocdStart)+8, io.SeekStart); err != nil {
					return 0, 0, errIO(err)
				}
				n, err := readU16LE(r)
				if err != nil {
					return 0, 0, err
				}
				if _, err := r.Seek(6, io.SeekCurrent); err != nil {
					return 0, 0, errIO(err)
				}
				cdPos, err := readU32LE(r)
				if err != nil {
					return 0, 0, err
				}
				if uint64(cdPos) >= eocdStart {
					return 0, 0, &Error{Kind: KindEndOfCentralDirectoryRecordCorrupt}
				}
				return uint64(cdPos), int(n), nil
			}
		}

		if eocdStart == eocdStartMin {
			return 0, 0, &Error{Kind: KindEndOfCentralDirectoryRecordNotFound}
		}
		eocdStart--
	}
}

func parseCentralDirectoryEntry(r io.ReadSeeker, i int) (*centralDirectoryEntry, error) {
	sig, err := readU32LE(r)
	if err != nil {
		return nil, err
	}
	if sig != centralDirSignature {
		return nil, &Error{Kind: KindCentralDirectoryEntryCorrupt, Index: i + 1}
	}

	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return nil, errIO(err)
	}
	method, err := readU16LE(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return nil, errIO(err)
	}
	crc, err := readU32LE(r)
	if err != nil {
		return nil, err
	}
	compSize, err := readU32LE(r)
	if err != nil {
		return nil, err
	}
	uncompSize, err := readU32LE(r)
	if err != nil {
		return nil, err
	}
	filenameLen, err := readU16LE(r)
	if err != nil {
		return nil, err
	}
	extraLen, err := readU16LE(r)
	if err != nil {
		return nil, err
	}
	commentLen, err := readU16LE(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(8, io.SeekCurrent); err != nil {
		return nil, errIO(err)
	}
	localHeaderPos, err := readU32LE(r)
	if err != nil {
		return nil, err
	}

	filename := make([]byte, filenameLen)
	if _, err := io.ReadFull(r, filename); err != nil {
		return nil, errIO(err)
	}

	if _, err := r.Seek(int64(extraLen)+int64(commentLen), io.SeekCurrent); err != nil {
		return nil, errIO(err)
	}

	return &centralDirectoryEntry{
		fileMeta: fileMeta{
			filename:          filename,
			compressionMethod: method,
			crc32:             crc,
			compressedSize:    uint64(compSize),
			uncompressedSize:  uint64(uncompSize),
		},
		localHeaderPos: uint64(localHeaderPos),
	}, nil
}

func parseLocalHeader(r io.ReadSeeker, central fileMeta) (fileMeta, error) {
	sig, err := readU32LE(r)
	if err != nil {
		return fileMeta{}, err
	}
	if sig != localHeaderSignature {
		return fileMeta{}, &Error{Kind: KindFileLocalHeaderCorrupt}
	}

	if _, err := r.Seek(2, io.SeekCurrent); err != nil {
		return fileMeta{}, errIO(err)
	}
	flags, err := readU16LE(r)
	if err != nil {
		return fileMeta{}, err
	}
	method, err := readU16LE(r)
	if err != nil {
		return fileMeta{}, err
	}
	if _, err := r.Seek(4, io.SeekCurrent); err != nil {
		return fileMeta{}, errIO(err)
	}
	crc, err := readU32LE(r)
	if err != nil {
		return fileMeta{}, err
	}
	compSize, err := readU32LE(r)
	if err != nil {
		return fileMeta{}, err
	}
	uncompSize, err := readU32LE(r)
	if err != nil {
		return fileMeta{}, err
	}
	filenameLen, err := readU16LE(r)
	if err != nil {
		return fileMeta{}, err
	}
	extraLen, err := readU16LE(r)
	if err != nil {
		return fileMeta{}, err
	}

	filename := make([]byte, filenameLen)
	if _, err := io.ReadFull(r, filename); err != nil {
		return fileMeta{}, errIO(err)
	}
	if _, err := r.Seek(int64(extraLen), io.SeekCurrent); err != nil {
		return fileMeta{}, errIO(err)
	}

	// With general-purpose flag bit 3 set, the CRC-32 and sizes are
	// written in a data descriptor after the entry's data and are zero
	// here; the central directory carries the real values.
	if flags&0x8 != 0 {
		crc, compSize, uncompSize = central.crc32, uint32(central.compressedSize), uint32(central.uncompressedSize)
	}

	return fileMeta{
		filename:          filename,
		compressionMethod: method,
		crc32:             crc,
		compressedSize:    uint64(compSize),
		uncompressedSize:  uint64(uncompSize),
	}, nil
}

// isTopLevelInfoJSON reports whether filename is "<dir>/info.json" for
// exactly one path component, the layout every released mod archive
// uses (the zip's sole top-level directory matches the mod's name and
// version).
func isTopLevelInfoJSON(filename []byte) bool {
	s := string(filename)
	if !strings.HasSuffix(s, "/info.json") {
		return false
	}
	return strings.Count(s, "/") == 1
}

func decompress(method uint16, data []byte, expectedCRC32 uint32) ([]byte, error) {
	var out []byte
	switch method {
	case methodStored:
		out = data

	case methodDeflated:
		fr := flate.NewReader(bytes.NewReader(data))
		defer func() { _ = fr.Close() }()
		decoded, err := io.ReadAll(fr)
		if err != nil {
			return nil, errIO(err)
		}
		out = decoded

	default:
		return nil, &Error{Kind: KindUnsupportedCompressionMethod, Method: method}
	}

	if crc32.ChecksumIEEE(out) != expectedCRC32 {
		return nil, &Error{Kind: KindFileCorrupt}
	}
	return out, nil
}

func readU16LE(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errIO(err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errIO(err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
