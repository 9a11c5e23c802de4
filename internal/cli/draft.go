// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rapidaai/dictamed/config"
	internal_draft "github.com/rapidaai/dictamed/internal/draft"
	"github.com/rapidaai/dictamed/pkg/commons"
)

func newDraftCmd(logger commons.Logger, cfg *config.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Gère le brouillon sauvegardé",
	}
	cmd.AddCommand(newDraftShowCmd(logger, cfg))
	cmd.AddCommand(newDraftClearCmd(logger, cfg))
	return cmd
}

func newDraftShowCmd(logger commons.Logger, cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Affiche le brouillon sauvegardé",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(logger, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			draft, err := store.LoadDraft(cmd.Context())
			if errors.Is(err, internal_draft.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aucun brouillon sauvegardé.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s\n", draft.Mode)
			fmt.Fprintf(cmd.OutOrStdout(), "Sauvegardé le: %s\n", draft.SavedAt.Local().Format("02/01/2006 15:04:05"))
			for field, value := range draft.Fields {
				if value != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", field, value)
				}
			}
			return nil
		},
	}
}

func newDraftClearCmd(logger commons.Logger, cfg *config.AppConfig) *cobra.Command {
	var credentials bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Supprime le brouillon sauvegardé",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(logger, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ClearDraft(cmd.Context()); err != nil {
				return err
			}
			if credentials {
				if err := store.ClearCredentials(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Brouillon et identifiants supprimés.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Brouillon supprimé.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&credentials, "credentials", false, "Supprime aussi les identifiants mémorisés")
	return cmd
}
