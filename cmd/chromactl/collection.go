// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	"github.com/spf13/cobra"
)

type collectionView struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Dimension int            `json:"dimension" yaml:"dimension"`
	Metric    chroma.Metric  `json:"metric" yaml:"metric"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Tenant    string         `json:"tenant" yaml:"tenant"`
	Database  string         `json:"database" yaml:"database"`
}

func viewOf(c *chroma.Collection) collectionView {
	return collectionView{
		ID:        c.ID,
		Name:      c.Name,
		Dimension: c.Dimension,
		Metric:    c.Metric,
		Metadata:  c.Metadata,
		Tenant:    c.Tenant,
		Database:  c.Database,
	}
}

type collectionList []collectionView

func (l collectionList) header() []string {
	return []string{"NAME", "ID", "DIMENSION", "METRIC", "METADATA"}
}

func (l collectionList) rows() [][]string {
	out := make([][]string, len(l))
	for i, c := range l {
		out[i] = []string{c.Name, c.ID, strconv.Itoa(c.Dimension), string(c.Metric), formatMetadata(c.Metadata)}
	}
	return out
}

type countView struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Count int    `json:"count" yaml:"count"`
}

func (c countView) header() []string { return []string{"NAME", "COUNT"} }
func (c countView) rows() [][]string {
	return [][]string{{c.Name, strconv.Itoa(c.Count)}}
}

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections", "col"},
		Short:   "Manage collections",
	}
	cmd.AddCommand(
		newCollectionCreateCmd(),
		newCollectionGetCmd(),
		newCollectionListCmd(),
		newCollectionModifyCmd(),
		newCollectionDeleteCmd(),
		newCollectionCountCmd(),
	)
	return cmd
}

func newCollectionCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dim, _ := cmd.Flags().GetInt("dimension")
			metricName, _ := cmd.Flags().GetString("metric")
			getOrCreate, _ := cmd.Flags().GetBool("get-or-create")
			pairs, _ := cmd.Flags().GetStringArray("metadata")

			metric, err := chroma.ParseMetric(metricName)
			if err != nil {
				return inputError("%v", err)
			}
			md, err := parseMetadata(pairs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			create := s.client.CreateCollection
			if getOrCreate {
				create = s.client.GetOrCreateCollection
			}
			col, err := create(ctx, args[0], dim, metric, chroma.WithCollectionMetadata(md))
			if err != nil {
				return err
			}
			return render(cmd, collectionList{viewOf(col)})
		},
	}
	cmd.Flags().IntP("dimension", "d", 0, "embedding dimensionality (required)")
	cmd.Flags().StringP("metric", "m", "l2", "distance metric: l2, cosine or ip")
	cmd.Flags().Bool("get-or-create", false, "return the existing collection instead of failing")
	cmd.Flags().StringArray("metadata", nil, "collection metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("dimension")
	return cmd
}

func newCollectionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			col, err := s.client.GetCollection(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, collectionList{viewOf(col)})
		},
	}
}

func newCollectionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			if limit < 0 || offset < 0 {
				return inputError("--limit and --offset must be >= 0")
			}

			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			cols, err := s.client.ListCollections(ctx, limit, offset)
			if err != nil {
				return err
			}
			out := make(collectionList, len(cols))
			for i, c := range cols {
				out[i] = viewOf(c)
			}
			return render(cmd, out)
		},
	}
	cmd.Flags().Int("limit", 0, "maximum collections to list (0 = all)")
	cmd.Flags().Int("offset", 0, "collections to skip")
	return cmd
}

func newCollectionModifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify <name>",
		Short: "Rename a collection or replace its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newName, _ := cmd.Flags().GetString("name")
			pairs, _ := cmd.Flags().GetStringArray("metadata")
			if newName == "" && len(pairs) == 0 {
				return inputError("nothing to modify: pass --name and/or --metadata")
			}
			md, err := parseMetadata(pairs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			col, err := s.client.GetCollection(ctx, args[0])
			if err != nil {
				return err
			}
			col, err = col.Modify(ctx, newName, md)
			if err != nil {
				return err
			}
			return render(cmd, collectionList{viewOf(col)})
		},
	}
	cmd.Flags().String("name", "", "new collection name")
	cmd.Flags().StringArray("metadata", nil, "replacement metadata as key=value (repeatable)")
	return cmd
}

func newCollectionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a collection and all its records",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.client.DeleteCollection(ctx, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted collection: %s\n", args[0])
			return err
		},
	}
}

func newCollectionCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count [name]",
		Short: "Count collections, or records in the named collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if len(args) == 0 {
				n, err := s.client.CountCollections(ctx)
				if err != nil {
					return err
				}
				return render(cmd, countView{Name: "collections", Count: n})
			}

			col, err := s.client.GetCollection(ctx, args[0])
			if err != nil {
				return err
			}
			n, err := col.Count(ctx)
			if err != nil {
				return err
			}
			return render(cmd, countView{Name: args[0], Count: n})
		},
	}
}

// parseMetadata turns key=value pairs into metadata. Values that parse as
// integers, floats or booleans keep that type; everything else is a string.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	md := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, inputError("metadata %q must be key=value", p)
		}
		md[k] = parseScalar(v)
	}
	return md, nil
}

func parseScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
