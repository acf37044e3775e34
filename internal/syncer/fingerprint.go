package syncer

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// Fingerprint returns the MD5 hex digest of a file's contents. The digest
// is content-only, so identical bytes at different paths compare equal.
// It is used purely for equality testing within one sync domain, never for
// security, and matches the hashes recorded in existing state files.
//
// Any read failure (permission error, file vanished mid-read, dangling
// symlink) yields the empty string, which never compares equal to a real
// digest.
func Fingerprint(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}

	return hex.EncodeToString(h.Sum(nil))
}
