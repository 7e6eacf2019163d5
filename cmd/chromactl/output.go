// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// tabular is implemented by command results that can print as a table.
// Structured formats marshal the value itself.
type tabular interface {
	header() []string
	rows() [][]string
}

func render(cmd *cobra.Command, v tabular) error {
	w := cmd.OutOrStdout()
	switch format := viper.GetString("output"); format {
	case "", "table":
		return writeTable(w, v.header(), v.rows())
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return inputError("unknown output format %q (want table, json or yaml)", format)
	}
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, md[k])
	}
	return strings.Join(parts, " ")
}

func formatDoc(doc *string, limit int) string {
	if doc == nil {
		return ""
	}
	s := strings.ReplaceAll(*doc, "\n", " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}

func formatVector(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	const show = 4
	parts := make([]string, 0, show+1)
	for i, x := range v {
		if i == show {
			parts = append(parts, fmt.Sprintf("… (%d)", len(v)))
			break
		}
		parts = append(parts, strconv.FormatFloat(float64(x), 'g', 4, 32))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
