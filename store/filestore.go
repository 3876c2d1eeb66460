// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/parley-foundation/parley/lib/codec"
	"github.com/parley-foundation/parley/lib/ref"
)

// compressionTag identifies the compression algorithm used for a
// stored object. The tag is the first byte of every object file —
// a format constant, changing values breaks existing stores.
type compressionTag byte

const (
	compressionNone compressionTag = 0
	compressionLZ4  compressionTag = 1
	compressionZstd compressionTag = 2
)

// Compression selection thresholds. Tiny objects are not worth the
// header overhead; large objects get zstd's better ratio, everything
// between gets LZ4's cheap decode.
const (
	noCompressBelow = 256
	zstdAbove       = 64 << 10
)

// FileStore is a Store backed by the local filesystem. Object files
// are written once under objects/<first two hex chars>/<hash> with
// per-object transparent compression; a parallel ids/ tree maps
// identity hashes to their latest version hash. Writes go through a
// temp file and rename, so a crashed write never leaves a truncated
// object behind.
//
// Grants and the channel directory are NOT persisted — FileStore
// embeds a MemoryStore for those ports, and that state is lost on
// restart. Only the object graph survives.
type FileStore struct {
	// MemoryStore serves the AccessController and Directory ports.
	*MemoryStore

	root        string
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
}

// NewFileStore opens (creating if needed) a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"objects", "ids", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("initializing zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd decoder: %w", err)
	}
	return &FileStore{
		MemoryStore: NewMemoryStore(),
		root:        dir,
		zstdEncoder: encoder,
		zstdDecoder: decoder,
	}, nil
}

// Compile-time port checks.
var (
	_ Store            = (*FileStore)(nil)
	_ AccessController = (*FileStore)(nil)
	_ Directory        = (*FileStore)(nil)
)

// StoreVersioned stores a versioned object on disk and updates the
// identity's latest-version file.
func (f *FileStore) StoreVersioned(ctx context.Context, obj Versioned) (ref.VersionedRef, error) {
	encoded, hash, err := encodeAndHash(obj)
	if err != nil {
		return ref.VersionedRef{}, fmt.Errorf("encoding versioned object: %w", err)
	}
	idHash, err := identityHash(obj.Identity())
	if err != nil {
		return ref.VersionedRef{}, fmt.Errorf("encoding object identity: %w", err)
	}

	if err := f.writeObject(hash, encoded); err != nil {
		return ref.VersionedRef{}, err
	}
	if err := f.writeFile(f.idPath(idHash), []byte(hash.String())); err != nil {
		return ref.VersionedRef{}, fmt.Errorf("recording latest version for %s: %w", idHash, err)
	}
	return ref.VersionedRef{Hash: hash, IDHash: idHash}, nil
}

// StoreUnversioned stores an immutable object on disk. Idempotent.
func (f *FileStore) StoreUnversioned(ctx context.Context, obj any) (ref.ObjectRef, error) {
	encoded, hash, err := encodeAndHash(obj)
	if err != nil {
		return ref.ObjectRef{}, fmt.Errorf("encoding object: %w", err)
	}
	if err := f.writeObject(hash, encoded); err != nil {
		return ref.ObjectRef{}, err
	}
	return hash, nil
}

// GetByIDHash loads the latest version of a versioned object.
func (f *FileStore) GetByIDHash(ctx context.Context, idHash ref.IDHash, out any) error {
	data, err := os.ReadFile(f.idPath(idHash))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("identity %s: %w", idHash, ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading latest version for %s: %w: %w", idHash, ErrUnavailable, err)
	}
	hash, err := ref.NewObjectRef(string(data))
	if err != nil {
		return fmt.Errorf("corrupt latest-version file for %s: %w", idHash, err)
	}
	return f.GetByHash(ctx, hash, out)
}

// GetByHash loads an object by content hash.
func (f *FileStore) GetByHash(ctx context.Context, hash ref.ObjectRef, out any) error {
	raw, err := os.ReadFile(f.objectPath(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("object %s: %w", hash.Short(), ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading object %s: %w: %w", hash.Short(), ErrUnavailable, err)
	}
	encoded, err := f.decompress(raw)
	if err != nil {
		return fmt.Errorf("decompressing object %s: %w", hash.Short(), err)
	}
	if err := codec.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("decoding object %s: %w", hash.Short(), err)
	}
	return nil
}

// writeObject compresses and writes an object file. Existing files
// are left alone: content addressing guarantees identical bytes.
func (f *FileStore) writeObject(hash ref.ObjectRef, encoded []byte) error {
	path := f.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	compressed, err := f.compress(encoded)
	if err != nil {
		return fmt.Errorf("compressing object %s: %w", hash.Short(), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w: %w", ErrUnavailable, err)
	}
	if err := f.writeFile(path, compressed); err != nil {
		return fmt.Errorf("writing object %s: %w", hash.Short(), err)
	}
	return nil
}

// writeFile writes data through a temp file and rename for atomicity.
func (f *FileStore) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Join(f.root, "tmp"), "write-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// compress selects a codec by object size and returns the tagged
// compressed form: one tag byte, then the codec-specific payload.
func (f *FileStore) compress(data []byte) ([]byte, error) {
	switch {
	case len(data) < noCompressBelow:
		return append([]byte{byte(compressionNone)}, data...), nil

	case len(data) >= zstdAbove:
		out := make([]byte, 1, len(data)/2+1)
		out[0] = byte(compressionZstd)
		return f.zstdEncoder.EncodeAll(data, out), nil

	default:
		if len(data) > math.MaxUint32 {
			return nil, fmt.Errorf("object exceeds LZ4 size limit: %d bytes", len(data))
		}
		// LZ4 block format needs the uncompressed length for
		// decoding; store it as a 4-byte prefix after the tag.
		buffer := make([]byte, 5+lz4.CompressBlockBound(len(data)))
		buffer[0] = byte(compressionLZ4)
		binary.LittleEndian.PutUint32(buffer[1:5], uint32(len(data)))
		var compressor lz4.Compressor
		n, err := compressor.CompressBlock(data, buffer[5:])
		if err != nil {
			return nil, fmt.Errorf("lz4 compression: %w", err)
		}
		if n == 0 {
			// Incompressible; store raw.
			return append([]byte{byte(compressionNone)}, data...), nil
		}
		return buffer[:5+n], nil
	}
}

// decompress reverses compress.
func (f *FileStore) decompress(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty object file")
	}
	payload := raw[1:]
	switch compressionTag(raw[0]) {
	case compressionNone:
		return payload, nil

	case compressionZstd:
		return f.zstdDecoder.DecodeAll(payload, nil)

	case compressionLZ4:
		if len(payload) < 4 {
			return nil, fmt.Errorf("truncated lz4 object header")
		}
		uncompressedLength := binary.LittleEndian.Uint32(payload[:4])
		out := make([]byte, uncompressedLength)
		n, err := lz4.UncompressBlock(payload[4:], out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		return out[:n], nil

	default:
		return nil, fmt.Errorf("unknown compression tag %d", raw[0])
	}
}

func (f *FileStore) objectPath(hash ref.ObjectRef) string {
	h := hash.String()
	return filepath.Join(f.root, "objects", h[:2], h)
}

func (f *FileStore) idPath(idHash ref.IDHash) string {
	h := idHash.String()
	return filepath.Join(f.root, "ids", h)
}
