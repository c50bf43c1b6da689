package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactFile is an output file together with its checksum sidecar.
type ArtifactFile struct {
	Dir      string
	FileName string
}

func NewArtifactFile(path string) *ArtifactFile {
	return &ArtifactFile{
		Dir:      filepath.Dir(path),
		FileName: filepath.Base(path),
	}
}

func (af *ArtifactFile) HashExt() string {
	return "sha256"
}

func (af *ArtifactFile) HashFileName() string {
	return fmt.Sprintf("%s.%s", af.FileName, af.HashExt())
}

func (af *ArtifactFile) FullPath() string {
	return filepath.Join(af.Dir, af.FileName)
}

func (af *ArtifactFile) HashFilePath() string {
	return filepath.Join(af.Dir, af.HashFileName())
}

func (af *ArtifactFile) GenerateHash() (string, error) {
	f, err := os.Open(af.FullPath())
	if err != nil {
		return "", fmt.Errorf("error opening artifact file: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	buf := make([]byte, 1024*1024)

	// merkle tree collections of a full epoch run to hundreds of megabytes
	if _, err := io.CopyBuffer(hash, f, buf); err != nil {
		return "", fmt.Errorf("error reading artifact file: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// GenerateAndSaveHash writes "<hash> <filename>\n" next to the artifact.
func (af *ArtifactFile) GenerateAndSaveHash() (string, error) {
	sum, err := af.GenerateHash()
	if err != nil {
		return "", fmt.Errorf("error generating artifact hash: %w", err)
	}
	content := fmt.Sprintf("%s %s\n", sum, af.FileName)
	if err := os.WriteFile(af.HashFilePath(), []byte(content), 0644); err != nil {
		return "", fmt.Errorf("error writing hash file: %w", err)
	}
	return sum, nil
}

func (af *ArtifactFile) ValidateHash() error {
	hashFile, err := os.ReadFile(af.HashFilePath())
	if err != nil {
		return fmt.Errorf("error reading hash file: %w", err)
	}
	fields := strings.Fields(string(hashFile))
	if len(fields) == 0 {
		return fmt.Errorf("hash file %s is empty", af.HashFileName())
	}

	sum, err := af.GenerateHash()
	if err != nil {
		return fmt.Errorf("error generating artifact hash: %w", err)
	}
	if sum != fields[0] {
		return fmt.Errorf("hashes do not match: %s != %s", sum, fields[0])
	}
	return nil
}

func (af *ArtifactFile) ClearFiles() {
	_ = os.Remove(af.FullPath())
	_ = os.Remove(af.HashFilePath())
}
