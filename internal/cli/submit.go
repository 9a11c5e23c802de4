// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rapidaai/dictamed/config"
	internal_autosave "github.com/rapidaai/dictamed/internal/autosave"
	internal_device "github.com/rapidaai/dictamed/internal/device"
	internal_draft "github.com/rapidaai/dictamed/internal/draft"
	internal_payload "github.com/rapidaai/dictamed/internal/payload"
	internal_registry "github.com/rapidaai/dictamed/internal/registry"
	internal_session "github.com/rapidaai/dictamed/internal/session"
	internal_submit "github.com/rapidaai/dictamed/internal/submit"
	internal_ui "github.com/rapidaai/dictamed/internal/ui"
	"github.com/rapidaai/dictamed/pkg/commons"
)

type submitOptions struct {
	mode         string
	username     string
	accessCode   string
	recordNumber string
	patientName  string
	remember     bool
	forget       bool
	audio        []string
	texte        string
	photos       []string
}

func newSubmitCmd(logger commons.Logger, cfg *config.AppConfig) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Enregistre les sections audio et envoie le compte rendu",
		Long: "Enregistre chaque section depuis un fichier audio puis construit " +
			"et envoie le compte rendu au collecteur. Les champs texte sont " +
			"sauvegardés en brouillon pendant la saisie.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Explicitly disabling remember forgets stored credentials.
			opts.forget = cmd.Flags().Changed("remember") && !opts.remember
			ui := internal_ui.NewConsole(cmd.OutOrStdout(), cmd.InOrStdin())
			return runSubmit(cmd.Context(), logger, cfg, ui, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "test", "Mode de saisie: normal, test ou texte")
	cmd.Flags().StringVar(&opts.username, "username", "", "Identifiant (mode normal)")
	cmd.Flags().StringVar(&opts.accessCode, "access-code", "", "Code d'accès (mode normal)")
	cmd.Flags().StringVar(&opts.recordNumber, "record", "", "Numéro de dossier")
	cmd.Flags().StringVar(&opts.patientName, "patient", "", "Nom du patient")
	cmd.Flags().BoolVar(&opts.remember, "remember", false, "Mémoriser les identifiants")
	cmd.Flags().StringArrayVar(&opts.audio, "audio", nil, "Section audio au format section=fichier (répétable)")
	cmd.Flags().StringVar(&opts.texte, "texte", "", "Compte rendu en texte libre (mode texte)")
	cmd.Flags().StringArrayVar(&opts.photos, "photo", nil, "Photo jointe (mode texte, répétable)")
	return cmd
}

func runSubmit(ctx context.Context, logger commons.Logger, cfg *config.AppConfig, ui internal_ui.Interactor, opts *submitOptions) error {
	mode := internal_registry.Mode(opts.mode)
	if !mode.Valid() {
		return fmt.Errorf("mode inconnu %q", opts.mode)
	}

	store, err := openStore(logger, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	errLog := commons.NewErrorLog(0)
	coordinator := internal_autosave.NewCoordinator(logger, store, internal_autosave.Config{
		Interval: cfg.AutoSave.Interval,
		Debounce: cfg.AutoSave.Debounce,
		TTL:      cfg.AutoSave.Expiration,
	})
	coordinator.Start(ctx)
	defer coordinator.Stop()

	restoreDraft(ctx, coordinator, ui, opts)
	loadCredentials(ctx, store, mode, opts)
	coordinator.Changed(string(mode), draftFields(opts))

	registry := internal_registry.New()
	if mode != internal_registry.ModeTexte {
		if err := recordSections(ctx, logger, cfg, ui, mode, registry, errLog, opts.audio); err != nil {
			return err
		}
	}

	if !registry.CanSubmit(mode) {
		ui.Notify(internal_ui.KindWarning, "Veuillez enregistrer au moins une section avant l'envoi.", "Aucun enregistrement")
		return errors.New("no completed sections to submit")
	}

	fields, err := buildFormFields(opts)
	if err != nil {
		return err
	}

	builder := internal_payload.NewBuilder(logger, internal_payload.Config{
		ClientVersion: cfg.Version,
		MinSections:   cfg.Recording.MinSections,
		MaxFileSize:   cfg.Recording.MaxFileSize,
	})
	payload, err := builder.Build(mode, fields, registry)
	if err != nil {
		var validation *internal_payload.ValidationError
		if errors.As(err, &validation) {
			ui.Notify(internal_ui.KindError, validationMessage(validation), "Formulaire incomplet")
		}
		return err
	}

	pipeline := internal_submit.NewPipeline(logger, internal_submit.Config{
		Timeout:       cfg.API.Timeout,
		Attempts:      cfg.API.RetryAttempts,
		Delay:         cfg.API.RetryDelay,
		ClientVersion: cfg.Version,
		ErrorLog:      errLog,
	})

	ui.SetLoading(true, "Envoi en cours...")
	ack, err := pipeline.Submit(ctx, cfg.EndpointFor(string(mode)), payload)
	ui.SetLoading(false, "")
	if err != nil {
		var subErr *internal_submit.SubmissionError
		if errors.As(err, &subErr) {
			ui.Notify(internal_ui.KindError, submissionMessage(subErr), "Échec de l'envoi")
		}
		return err
	}

	ui.Notify(internal_ui.KindSuccess, "Votre compte rendu a été envoyé avec succès.", "Envoi réussi")
	logger.Infof("submission acknowledged with status %d", ack.StatusCode)

	// A successful send invalidates the draft and the recordings, except
	// in test mode, which keeps the form intact for review and resubmit.
	if mode != internal_registry.ModeTest {
		if err := coordinator.Clear(ctx); err != nil {
			logger.Warnf("unable to clear draft: %v", err)
		}
		registry.Reset(mode)
	}

	if mode == internal_registry.ModeNormal {
		switch {
		case opts.remember:
			err := store.SaveCredentials(ctx, internal_draft.Credentials{
				Username:   opts.username,
				AccessCode: opts.accessCode,
			})
			if err != nil {
				logger.Warnf("unable to remember credentials: %v", err)
			}
		case opts.forget:
			if err := store.ClearCredentials(ctx); err != nil {
				logger.Warnf("unable to forget credentials: %v", err)
			}
		}
	}
	return nil
}

// recordSections captures each section=file pair through the session
// state machine, waiting for the file stream to drain before stopping.
// Every capturer sits behind one gate, so a second section can never
// acquire the input while another is still recording.
func recordSections(ctx context.Context, logger commons.Logger, cfg *config.AppConfig, ui internal_ui.Interactor, mode internal_registry.Mode, registry *internal_registry.Registry, errLog *commons.ErrorLog, pairs []string) error {
	gate := internal_device.NewGate()
	for _, pair := range pairs {
		sectionID, path, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("argument --audio invalide %q, attendu section=fichier", pair)
		}

		session := internal_session.New(logger, gate.Wrap(internal_device.NewFileCapturer(path)), ui, internal_session.Config{
			SectionID:   sectionID,
			MaxDuration: cfg.Recording.MaxDuration,
			ErrorLog:    errLog,
		})
		if err := registry.Register(mode, session); err != nil {
			return err
		}

		if err := session.Start(ctx); err != nil {
			return fmt.Errorf("section %s: %w", sectionID, err)
		}
		select {
		case <-session.Drained():
		case <-ctx.Done():
			session.Reset()
			return ctx.Err()
		}
		if err := session.Stop(); err != nil {
			return fmt.Errorf("section %s: %w", sectionID, err)
		}
		logger.Infof("section %s captured from %s (%d bytes)", sectionID, path, session.Artifact().Size())
	}
	return nil
}

func buildFormFields(opts *submitOptions) (internal_payload.FormFields, error) {
	fields := internal_payload.FormFields{
		Username:     opts.username,
		AccessCode:   opts.accessCode,
		RecordNumber: opts.recordNumber,
		PatientName:  opts.patientName,
		Texte:        opts.texte,
	}
	for _, path := range opts.photos {
		data, err := os.ReadFile(path)
		if err != nil {
			return fields, fmt.Errorf("photo %s: %w", path, err)
		}
		fields.Photos = append(fields.Photos, internal_payload.PhotoInput{
			FileName: filepath.Base(path),
			MimeType: photoMimeType(path),
			Data:     data,
		})
	}
	return fields, nil
}

func photoMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// restoreDraft fills flags the user left empty from the saved draft.
func restoreDraft(ctx context.Context, coordinator *internal_autosave.Coordinator, ui internal_ui.Notifier, opts *submitOptions) {
	draft, err := coordinator.Restore(ctx, opts.mode)
	if err != nil || draft == nil {
		return
	}
	if opts.recordNumber == "" {
		opts.recordNumber = draft.Fields["NumeroDeDossier"]
	}
	if opts.patientName == "" {
		opts.patientName = draft.Fields["NomDuPatient"]
	}
	if opts.texte == "" {
		opts.texte = draft.Fields["texte"]
	}
	ui.Notify(internal_ui.KindInfo, "Un brouillon précédent a été restauré.", "Brouillon restauré")
}

func loadCredentials(ctx context.Context, store *internal_draft.Store, mode internal_registry.Mode, opts *submitOptions) {
	if mode != internal_registry.ModeNormal || opts.username != "" {
		return
	}
	creds, err := store.LoadCredentials(ctx)
	if err != nil {
		return
	}
	opts.username = creds.Username
	if opts.accessCode == "" {
		opts.accessCode = creds.AccessCode
	}
}

func draftFields(opts *submitOptions) map[string]string {
	return map[string]string{
		"NumeroDeDossier": opts.recordNumber,
		"NomDuPatient":    opts.patientName,
		"texte":           opts.texte,
	}
}

func validationMessage(err *internal_payload.ValidationError) string {
	switch err.Rule {
	case internal_payload.RuleRequired:
		return fmt.Sprintf("Le champ %s est obligatoire.", err.Field)
	case internal_payload.RuleLength:
		return fmt.Sprintf("Le champ %s a une longueur invalide.", err.Field)
	case internal_payload.RuleMinSectionCount:
		return "Veuillez enregistrer toutes les sections requises avant l'envoi."
	case internal_payload.RuleMissingAudio, internal_payload.RuleMissingMimeType:
		return fmt.Sprintf("L'enregistrement de la section %s est invalide.", err.Field)
	case internal_payload.RuleMaxFileSize:
		return fmt.Sprintf("Le fichier %s dépasse la taille maximale autorisée.", err.Field)
	case internal_payload.RuleMaxPhotoCount:
		return "Le nombre maximum de photos est de 5."
	case internal_payload.RuleImageMimeType:
		return fmt.Sprintf("Le fichier %s n'est pas une image.", err.Field)
	default:
		return "Le formulaire contient des erreurs."
	}
}

func submissionMessage(err *internal_submit.SubmissionError) string {
	switch err.Kind {
	case internal_submit.KindTimeout:
		return "La requête a expiré. Veuillez vérifier votre connexion et réessayer."
	case internal_submit.KindUnreachable:
		if err.Attempts == 0 {
			return "Aucune connexion réseau. Vos données ont été conservées."
		}
		return "Le serveur est injoignable. Vos données ont été conservées."
	case internal_submit.KindServer:
		return fmt.Sprintf("Le serveur a renvoyé une erreur (code %d). Veuillez réessayer plus tard.", err.StatusCode)
	case internal_submit.KindCancelled:
		return "L'envoi a été annulé."
	default:
		return "L'envoi a échoué. Veuillez réessayer."
	}
}
