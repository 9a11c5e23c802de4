// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_payload

import "fmt"

// Wire payload for the collector webhook. Field names match the collector
// contract, including the French identity keys.
type SubmissionPayload struct {
	Mode          string                    `json:"mode"`
	RecordedAt    string                    `json:"recordedAt"`
	ClientVersion string                    `json:"clientVersion,omitempty"`
	Username      string                    `json:"username,omitempty"`
	AccessCode    string                    `json:"accessCode,omitempty"`
	RecordNumber  string                    `json:"NumeroDeDossier"`
	PatientName   string                    `json:"NomDuPatient"`
	Sections      map[string]SectionPayload `json:"sections"`
	Texte         string                    `json:"texte,omitempty"`
	Photos        []Photo                   `json:"photos,omitempty"`
}

// SectionPayload carries one recorded section, audio base64-encoded.
type SectionPayload struct {
	AudioBase64 string  `json:"audioBase64"`
	FileName    string  `json:"fileName"`
	MimeType    string  `json:"mimeType"`
	Format      string  `json:"format"`
	Duration    float64 `json:"duration"`
	Size        int64   `json:"size"`
}

// Photo is a texte-mode image attachment.
type Photo struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Base64   string `json:"base64"`
}

// Validation rule identifiers surfaced with ValidationError.
const (
	RuleRequired        = "required"
	RuleLength          = "length"
	RuleMinSectionCount = "minSectionCount"
	RuleMissingAudio    = "missingAudio"
	RuleMissingMimeType = "missingMimeType"
	RuleMaxFileSize     = "maxFileSize"
	RuleMaxPhotoCount   = "maxPhotoCount"
	RuleImageMimeType   = "imageMimeType"
)

// ValidationError blocks payload construction; it is never retried.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field %q violates rule %q", e.Field, e.Rule)
}
