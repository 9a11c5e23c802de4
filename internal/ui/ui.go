// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Kind is the toast category.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Notifier shows a user-facing toast.
type Notifier interface {
	Notify(kind Kind, message, title string)
}

// Loader toggles the busy indication.
type Loader interface {
	SetLoading(active bool, message string)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// Interactor bundles the full UI collaborator contract.
type Interactor interface {
	Notifier
	Loader
	Confirmer
}

// Noop ignores every UI interaction and confirms destructive actions.
// Used by tests and headless flows.
type Noop struct{}

func (Noop) Notify(Kind, string, string) {}
func (Noop) SetLoading(bool, string)      {}
func (Noop) Confirm(string) bool          { return true }

// Console renders toasts and confirmations on a terminal.
type Console struct {
	Out io.Writer
	In  io.Reader
}

func NewConsole(out io.Writer, in io.Reader) *Console {
	return &Console{Out: out, In: in}
}

func (c *Console) Notify(kind Kind, message, title string) {
	if title != "" {
		fmt.Fprintf(c.Out, "[%s] %s: %s\n", kind, title, message)
		return
	}
	fmt.Fprintf(c.Out, "[%s] %s\n", kind, message)
}

func (c *Console) SetLoading(active bool, message string) {
	if active {
		fmt.Fprintf(c.Out, "... %s\n", message)
	}
}

func (c *Console) Confirm(message string) bool {
	fmt.Fprintf(c.Out, "%s [o/N] ", message)
	reader := bufio.NewReader(c.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "o" || answer == "oui" || answer == "y" || answer == "yes"
}
