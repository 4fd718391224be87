package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// RunInputs is everything that determines the content of a report.
type RunInputs struct {
	Measurement         string
	ValueColumn         string
	ValueDescription    string
	SexColumn           string
	ParticipantIDColumn string
	Biobank             string
	Separator           string
	DataDigest          string // FileDigest of the measurement table
	DescriptorDigest    string // FileDigest of the descriptor table
}

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(measurement|value|description|sex|participant_id|biobank|separator|data|descriptors)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(in RunInputs) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%q|%s|%s",
		in.Measurement,
		in.ValueColumn,
		in.ValueDescription,
		in.SexColumn,
		in.ParticipantIDColumn,
		in.Biobank,
		in.Separator,
		in.DataDigest,
		in.DescriptorDigest,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// FileDigest returns the hex-encoded SHA256 of a file's contents.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ShortID returns the first 12 characters of an identifier for display.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
