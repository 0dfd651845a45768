package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainParam   = "huf/param/v1"
	DomainCode    = "huf/code/v1"
	DomainRun     = "huf/run/v1"
	DomainDataset = "huf/dataset/v1"
)

// ShortHashLen is the number of hex characters kept in stamp hashes.
const ShortHashLen = 16

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func shortHash(domain string, data []byte) string {
	return hashWithDomain(domain, data)[:ShortHashLen]
}

// ParamHash computes the identity of a threshold configuration from its
// canonical object form. Field order in the Go struct never matters.
func ParamHash(params IRObject) (string, error) {
	canonical, err := MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("ParamHash: failed to marshal: %w", err)
	}
	return shortHash(DomainParam, canonical), nil
}

// CodeHash computes the identity of a code-version fingerprint string.
func CodeHash(fingerprint string) string {
	return shortHash(DomainCode, []byte(fingerprint))
}

// DatasetID derives a dataset identifier from an input fingerprint such as
// "name|size|mtime" plus any adapter qualifiers.
func DatasetID(fingerprint string) string {
	return shortHash(DomainDataset, []byte(fingerprint))
}

// RunID combines dataset, parameters and creation time into the run
// identity. Two cycles over the same snapshot and config created at the
// same instant share a run id.
func RunID(datasetID, paramHash, createdUTC string) (string, error) {
	obj := IRObject{
		"dataset_id":  IRString(datasetID),
		"param_hash":  IRString(paramHash),
		"created_utc": IRString(createdUTC),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RunID: failed to marshal: %w", err)
	}
	return shortHash(DomainRun, canonical), nil
}

// MustParamHash is like ParamHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParamHash(params IRObject) string {
	h, err := ParamHash(params)
	if err != nil {
		panic(err)
	}
	return h
}
