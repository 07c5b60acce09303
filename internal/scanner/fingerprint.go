package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const hashChunkSize = 64 * 1024

// fingerprint stats and hashes a single file. Memory use is bounded by the
// chunk size regardless of file size.
func fingerprint(path string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, err
	}

	hash, err := hashFile(path)
	if err != nil {
		return FileRecord{}, err
	}

	return FileRecord{
		Path:        path,
		Size:        info.Size(),
		Extension:   normalizedExtension(path),
		CreatedAt:   createdTime(info),
		ModifiedAt:  info.ModTime().UTC(),
		ContentHash: hash,
	}, nil
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(hasher, file, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func normalizedExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return strings.TrimPrefix(ext, ".")
}

// createdTime extracts the change time as the closest portable stand-in for
// creation time; falls back to the modification time.
func createdTime(info os.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec).UTC()
	}
	return info.ModTime().UTC()
}
