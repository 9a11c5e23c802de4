// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_payload

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	internal_clock "github.com/rapidaai/dictamed/internal/clock"
	internal_registry "github.com/rapidaai/dictamed/internal/registry"
	"github.com/rapidaai/dictamed/pkg/commons"
	"github.com/rapidaai/dictamed/pkg/utils"
)

// Identity field limits.
const (
	minPatientNameLength  = 2
	maxPatientNameLength  = 100
	maxRecordNumberLength = 50
	maxPhotoCount         = 5
)

// FormFields is the text input collected from the active form.
type FormFields struct {
	Username     string
	AccessCode   string
	RecordNumber string
	PatientName  string
	Texte        string
	Photos       []PhotoInput
}

// PhotoInput is a raw texte-mode attachment before encoding.
type PhotoInput struct {
	FileName string
	MimeType string
	Data     []byte
}

type Config struct {
	ClientVersion string
	MinSections   int
	MaxFileSize   int64
	Clock         internal_clock.Clock
}

// Builder assembles a validated submission payload from the registry and
// form fields. It performs no I/O; binary audio is base64-encoded here,
// at build time, not while recording.
type Builder struct {
	logger        commons.Logger
	clock         internal_clock.Clock
	clientVersion string
	minSections   int
	maxFileSize   int64
}

func NewBuilder(logger commons.Logger, cfg Config) *Builder {
	if cfg.Clock == nil {
		cfg.Clock = internal_clock.System()
	}
	if cfg.MinSections <= 0 {
		cfg.MinSections = 3
	}
	return &Builder{
		logger:        logger,
		clock:         cfg.Clock,
		clientVersion: cfg.ClientVersion,
		minSections:   cfg.MinSections,
		maxFileSize:   cfg.MaxFileSize,
	}
}

// Build validates fail-fast in contract order: identity fields first,
// then the section minimum, then per-section audio shape. The first
// violation is reported.
func (b *Builder) Build(mode internal_registry.Mode, fields FormFields, reg *internal_registry.Registry) (*SubmissionPayload, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	if err := b.validateIdentity(mode, fields); err != nil {
		return nil, err
	}

	if mode == internal_registry.ModeTexte {
		return b.buildTexte(fields)
	}

	completed := reg.Completed(mode)
	if len(completed) < b.minSections {
		return nil, &ValidationError{Field: "sections", Rule: RuleMinSectionCount}
	}

	sections := make(map[string]SectionPayload, len(completed))
	index := 1
	for _, session := range completed {
		artifact := session.Artifact()
		if artifact == nil || artifact.Size() == 0 {
			return nil, &ValidationError{Field: session.SectionID(), Rule: RuleMissingAudio}
		}
		if utils.IsEmpty(artifact.MimeType()) {
			return nil, &ValidationError{Field: session.SectionID(), Rule: RuleMissingMimeType}
		}
		if b.maxFileSize > 0 && artifact.Size() > b.maxFileSize {
			return nil, &ValidationError{Field: session.SectionID(), Rule: RuleMaxFileSize}
		}

		sections[session.SectionID()] = SectionPayload{
			AudioBase64: artifact.Base64(),
			FileName:    fmt.Sprintf("msgVocal%d.%s", index, artifact.Format()),
			MimeType:    artifact.MimeType(),
			Format:      artifact.Format(),
			Duration:    artifact.Duration().Seconds(),
			Size:        artifact.Size(),
		}
		index++
	}

	payload := b.base(mode, fields)
	payload.Sections = sections
	if mode == internal_registry.ModeNormal {
		payload.Username = utils.Sanitize(fields.Username)
		// Credential, not display text: passed through unescaped.
		payload.AccessCode = fields.AccessCode
	}

	b.logger.Debugf("payload built: mode=%s sections=%d", mode, len(sections))
	return payload, nil
}

func (b *Builder) buildTexte(fields FormFields) (*SubmissionPayload, error) {
	if len(fields.Photos) > maxPhotoCount {
		return nil, &ValidationError{Field: "photos", Rule: RuleMaxPhotoCount}
	}

	payload := b.base(internal_registry.ModeTexte, fields)
	payload.Sections = map[string]SectionPayload{}
	payload.Texte = strings.TrimSpace(fields.Texte)
	for _, photo := range fields.Photos {
		if !strings.HasPrefix(photo.MimeType, "image/") {
			return nil, &ValidationError{Field: photo.FileName, Rule: RuleImageMimeType}
		}
		if b.maxFileSize > 0 && int64(len(photo.Data)) > b.maxFileSize {
			return nil, &ValidationError{Field: photo.FileName, Rule: RuleMaxFileSize}
		}
		payload.Photos = append(payload.Photos, Photo{
			FileName: photo.FileName,
			MimeType: photo.MimeType,
			Size:     int64(len(photo.Data)),
			Base64:   base64.StdEncoding.EncodeToString(photo.Data),
		})
	}
	return payload, nil
}

func (b *Builder) validateIdentity(mode internal_registry.Mode, fields FormFields) error {
	if mode == internal_registry.ModeNormal {
		if utils.IsEmpty(fields.Username) {
			return &ValidationError{Field: "username", Rule: RuleRequired}
		}
		if utils.IsEmpty(fields.AccessCode) {
			return &ValidationError{Field: "accessCode", Rule: RuleRequired}
		}
	}

	record := strings.TrimSpace(fields.RecordNumber)
	if record == "" {
		return &ValidationError{Field: "NumeroDeDossier", Rule: RuleRequired}
	}
	if len(record) > maxRecordNumberLength {
		return &ValidationError{Field: "NumeroDeDossier", Rule: RuleLength}
	}

	// Texte mode only requires the record number.
	if mode == internal_registry.ModeTexte {
		return nil
	}

	name := strings.TrimSpace(fields.PatientName)
	if name == "" {
		return &ValidationError{Field: "NomDuPatient", Rule: RuleRequired}
	}
	if len([]rune(name)) < minPatientNameLength || len([]rune(name)) > maxPatientNameLength {
		return &ValidationError{Field: "NomDuPatient", Rule: RuleLength}
	}
	return nil
}

func (b *Builder) base(mode internal_registry.Mode, fields FormFields) *SubmissionPayload {
	return &SubmissionPayload{
		Mode:          string(mode),
		RecordedAt:    b.clock.Now().UTC().Format(time.RFC3339),
		ClientVersion: b.clientVersion,
		RecordNumber:  utils.Sanitize(fields.RecordNumber),
		PatientName:   utils.Sanitize(fields.PatientName),
	}
}
