// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/chroma-go/internal/emulator"
	"github.com/sigil-dev/chroma-go/internal/store/memory"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec builds an emulator over an empty memory store and extracts
// the OpenAPI document huma derives from the route registrations.
func generateSpec() ([]byte, error) {
	st := memory.New()
	defer func() { _ = st.Close() }()

	srv, err := emulator.New(emulator.Config{ListenAddr: "127.0.0.1:0", AllowReset: true}, st)
	if err != nil {
		return nil, chromaerr.Errorf(chromaerr.CodeCLISetupFailure, "creating emulator: %w", err)
	}
	defer srv.Close()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
