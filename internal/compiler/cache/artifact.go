package cache

import (
	"encoding/json"
	"fmt"
)

// Artifact is one cached bundle together with the build facts that are
// not recoverable from the code alone
type Artifact struct {
	Code   string `json:"code"`
	Locals int    `json:"locals"`
}

// Encode serializes the artifact for a Store
func (a Artifact) Encode() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	return data, nil
}

// DecodeArtifact reads an artifact written by Encode
func DecodeArtifact(data []byte) (Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return a, nil
}
