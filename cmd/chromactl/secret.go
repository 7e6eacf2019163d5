// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/sigil-dev/chroma-go/internal/secrets"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/cobra"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: `Manage credentials in the operating system keyring.

Reference a stored secret from the config file as keyring://chroma/<name>,
for example client.token: "keyring://chroma/token".`,
	}
	cmd.PersistentFlags().String("service", secrets.DefaultService, "keyring service name")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored secret names",
			Args:  cobra.NoArgs,
			RunE:  runSecretList,
		},
		newSecretSetCmd(),
		&cobra.Command{
			Use:   "get <name>",
			Short: "Print a stored secret",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretGet,
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a secret by name",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretDelete,
		},
	)
	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret, read from --value or the first line of stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	cmd.Flags().String("value", "", "secret value (prefer stdin to keep it out of shell history)")
	return cmd
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	service, _ := cmd.Flags().GetString("service")
	keys, err := secretStoreFactory().List(service)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, err := fmt.Fprintln(out, "No secrets stored.")
		return err
	}
	for _, k := range keys {
		if _, err := fmt.Fprintf(out, "%s\tkeyring://%s/%s\n", k, service, k); err != nil {
			return err
		}
	}
	return nil
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	service, _ := cmd.Flags().GetString("service")
	value, _ := cmd.Flags().GetString("value")
	if value == "" {
		sc := bufio.NewScanner(cmd.InOrStdin())
		if sc.Scan() {
			value = strings.TrimSpace(sc.Text())
		}
	}
	if value == "" {
		return chromaerr.New(chromaerr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	if err := secretStoreFactory().Store(service, args[0], value); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: keyring://%s/%s\n", service, args[0])
	return err
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	service, _ := cmd.Flags().GetString("service")
	value, err := secretStoreFactory().Retrieve(service, args[0])
	if err != nil {
		if chromaerr.HasCode(err, chromaerr.CodeSecretNotFound) {
			return chromaerr.Errorf(chromaerr.CodeSecretNotFound, "secret %q not found", args[0])
		}
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	service, _ := cmd.Flags().GetString("service")
	name := args[0]

	if err := secretStoreFactory().Delete(service, name); err != nil {
		if chromaerr.HasCode(err, chromaerr.CodeSecretNotFound) {
			return chromaerr.Errorf(chromaerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return err
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return err
}
