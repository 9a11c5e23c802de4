// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rapidaai/dictamed/config"
)

func newVersionCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Affiche la version du client",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.Name, cfg.Version)
		},
	}
}
