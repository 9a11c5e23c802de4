// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rapidaai/dictamed/config"
	internal_clock "github.com/rapidaai/dictamed/internal/clock"
	internal_draft "github.com/rapidaai/dictamed/internal/draft"
	"github.com/rapidaai/dictamed/pkg/commons"
)

// NewRootCmd wires the dictation commands against the loaded config.
func NewRootCmd(logger commons.Logger, cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "dictamed",
		Short:         "Dictée médicale: enregistrement et envoi de comptes rendus vocaux",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSubmitCmd(logger, cfg))
	root.AddCommand(newDraftCmd(logger, cfg))
	root.AddCommand(newVersionCmd(cfg))
	return root
}

func openStore(logger commons.Logger, cfg *config.AppConfig) (*internal_draft.Store, error) {
	return internal_draft.Open(
		filepath.Join(cfg.StoragePath, "dictamed.db"),
		internal_clock.System(),
		logger,
	)
}
