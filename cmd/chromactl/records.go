// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/cobra"
)

// recordLine is one JSONL input line for upsert.
type recordLine struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Document  *string        `json:"document,omitempty"`
}

type recordView struct {
	ID        string         `json:"id" yaml:"id"`
	Document  *string        `json:"document,omitempty" yaml:"document,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

type recordList []recordView

func (l recordList) header() []string { return []string{"ID", "DOCUMENT", "METADATA", "EMBEDDING"} }
func (l recordList) rows() [][]string {
	out := make([][]string, len(l))
	for i, r := range l {
		out[i] = []string{r.ID, formatDoc(r.Document, 48), formatMetadata(r.Metadata), formatVector(r.Embedding)}
	}
	return out
}

// matchView mirrors chroma.Match field for field so it converts directly.
type matchView struct {
	ID        string         `json:"id" yaml:"id"`
	Distance  float64        `json:"distance" yaml:"distance"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Document  *string        `json:"document,omitempty" yaml:"document,omitempty"`
	Embedding []float32      `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

type queryView [][]matchView

func (q queryView) header() []string {
	return []string{"QUERY", "RANK", "ID", "DISTANCE", "DOCUMENT", "METADATA"}
}

func (q queryView) rows() [][]string {
	var out [][]string
	for qi, matches := range q {
		for rank, m := range matches {
			out = append(out, []string{
				strconv.Itoa(qi), strconv.Itoa(rank + 1), m.ID,
				strconv.FormatFloat(m.Distance, 'f', 6, 64),
				formatDoc(m.Document, 40), formatMetadata(m.Metadata),
			})
		}
	}
	return out
}

func newUpsertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upsert <collection>",
		Short: "Insert or overwrite records from a JSONL file",
		Long: `Read records from a JSON Lines file, one object per line:

  {"id": "doc-1", "embedding": [0.1, 0.2], "metadata": {"lang": "en"}, "document": "hello"}

Records with a document and no embedding are embedded with the configured
embedding provider. Use --file - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpsert,
	}
	cmd.Flags().StringP("file", "f", "", "JSONL file to read (- for stdin)")
	cmd.Flags().Int("batch-size", 500, "records sent per request")
	cmd.Flags().Bool("add", false, "fail on existing IDs instead of overwriting")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runUpsert(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	addOnly, _ := cmd.Flags().GetBool("add")
	if batchSize < 1 {
		return inputError("--batch-size must be at least 1")
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return inputError("opening %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	records, err := readRecords(in)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	col, err := s.collection(ctx, args[0])
	if err != nil {
		return err
	}
	write := col.Upsert
	if addOnly {
		write = col.Add
	}
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		if err := write(ctx, records[start:end]); err != nil {
			return chromaerr.Wrapf(err, chromaerr.CodeCLIRequestFailure, "writing records %d-%d", start, end-1)
		}
	}

	verb := "Upserted"
	if addOnly {
		verb = "Added"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d records into %s\n", verb, len(records), col.Name)
	return err
}

// readRecords parses JSON Lines. Blank lines are skipped; numbers in metadata
// keep integer type when they have no fractional part.
func readRecords(r io.Reader) ([]chroma.Record, error) {
	var out []chroma.Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		var rec recordLine
		if err := dec.Decode(&rec); err != nil {
			return nil, inputError("line %d: %v", line, err)
		}
		out = append(out, chroma.Record{
			ID:        rec.ID,
			Embedding: rec.Embedding,
			Metadata:  normalizeNumbers(rec.Metadata),
			Document:  rec.Document,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, inputError("reading records: %v", err)
	}
	if len(out) == 0 {
		return nil, inputError("no records in input")
	}
	return out, nil
}

func normalizeNumbers(md map[string]any) map[string]any {
	for k, v := range md {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			md[k] = i
		} else if f, err := n.Float64(); err == nil {
			md[k] = f
		}
	}
	return md
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <collection>",
		Short: "Fetch records by ID or filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, _ := cmd.Flags().GetStringSlice("ids")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			where, whereDoc, err := filterFlags(cmd)
			if err != nil {
				return err
			}
			include, err := includeFlag(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			col, err := s.collection(ctx, args[0])
			if err != nil {
				return err
			}
			res, err := col.Get(ctx, chroma.GetOptions{
				IDs: ids, Where: where, WhereDocument: whereDoc,
				Limit: limit, Offset: offset, Include: include,
			})
			if err != nil {
				return err
			}
			out := make(recordList, len(res.Records))
			for i, r := range res.Records {
				out[i] = recordView{ID: r.ID, Document: r.Document, Metadata: r.Metadata, Embedding: r.Embedding}
			}
			return render(cmd, out)
		},
	}
	cmd.Flags().StringSlice("ids", nil, "record IDs (comma separated)")
	cmd.Flags().Int("limit", 0, "maximum records (0 = all)")
	cmd.Flags().Int("offset", 0, "records to skip")
	addFilterFlags(cmd)
	cmd.Flags().StringSlice("include", nil, "fields to return: metadatas, documents, embeddings")
	return cmd
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Find the nearest records to query vectors or texts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawVectors, _ := cmd.Flags().GetStringArray("vector")
			texts, _ := cmd.Flags().GetStringArray("text")
			topK, _ := cmd.Flags().GetInt("top-k")
			if (len(rawVectors) == 0) == (len(texts) == 0) {
				return inputError("pass either --vector or --text")
			}
			vectors, err := parseVectors(rawVectors)
			if err != nil {
				return err
			}
			where, whereDoc, err := filterFlags(cmd)
			if err != nil {
				return err
			}
			include, err := includeFlag(cmd)
			if err != nil {
				return err
			}
			opts := []chroma.QueryOption{chroma.WithWhereDocument(whereDoc)}
			if len(include) > 0 {
				opts = append(opts, chroma.WithInclude(include...))
			}

			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			col, err := s.collection(ctx, args[0])
			if err != nil {
				return err
			}
			var results []chroma.QueryResult
			if len(texts) > 0 {
				results, err = col.QueryTexts(ctx, texts, topK, where, opts...)
			} else {
				results, err = col.Query(ctx, vectors, topK, where, opts...)
			}
			if err != nil {
				return err
			}

			out := make(queryView, len(results))
			for i, r := range results {
				out[i] = make([]matchView, len(r.Matches))
				for j, m := range r.Matches {
					out[i][j] = matchView(m)
				}
			}
			return render(cmd, out)
		},
	}
	cmd.Flags().StringArray("vector", nil, "query vector as comma separated floats (repeatable)")
	cmd.Flags().StringArray("text", nil, "query text, embedded with the configured provider (repeatable)")
	cmd.Flags().IntP("top-k", "k", 10, "matches per query")
	addFilterFlags(cmd)
	cmd.Flags().StringSlice("include", nil, "fields to return: metadatas, documents, distances, embeddings")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete records by ID or metadata filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, _ := cmd.Flags().GetStringSlice("ids")
			raw, _ := cmd.Flags().GetString("where")
			var where chroma.Where
			if err := decodeFilter(raw, &where); err != nil {
				return inputError("--where: %v", err)
			}

			ctx := cmd.Context()
			s, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			col, err := s.collection(ctx, args[0])
			if err != nil {
				return err
			}
			if err := col.Delete(ctx, ids, where); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted records from %s\n", col.Name)
			return err
		},
	}
	cmd.Flags().StringSlice("ids", nil, "record IDs (comma separated)")
	cmd.Flags().String("where", "", `metadata filter as JSON, e.g. '{"lang":"en"}'`)
	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("where", "", `metadata filter as JSON, e.g. '{"year":{"$gte":2020}}'`)
	cmd.Flags().String("where-document", "", `document filter as JSON, e.g. '{"$contains":"vector"}'`)
}

func filterFlags(cmd *cobra.Command) (chroma.Where, chroma.WhereDocument, error) {
	rawWhere, _ := cmd.Flags().GetString("where")
	rawDoc, _ := cmd.Flags().GetString("where-document")

	var where chroma.Where
	if err := decodeFilter(rawWhere, &where); err != nil {
		return nil, nil, inputError("--where: %v", err)
	}
	var whereDoc chroma.WhereDocument
	if err := decodeFilter(rawDoc, &whereDoc); err != nil {
		return nil, nil, inputError("--where-document: %v", err)
	}
	return where, whereDoc, nil
}

func decodeFilter(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func includeFlag(cmd *cobra.Command) ([]chroma.Include, error) {
	names, _ := cmd.Flags().GetStringSlice("include")
	out := make([]chroma.Include, 0, len(names))
	for _, n := range names {
		inc := chroma.Include(strings.TrimSpace(n))
		switch inc {
		case chroma.IncludeMetadatas, chroma.IncludeDocuments, chroma.IncludeDistances, chroma.IncludeEmbeddings:
			out = append(out, inc)
		default:
			return nil, inputError("unknown --include value %q", n)
		}
	}
	return out, nil
}

func parseVectors(raw []string) ([][]float32, error) {
	out := make([][]float32, len(raw))
	for i, r := range raw {
		fields := strings.FieldsFunc(r, func(c rune) bool { return c == ',' || c == ' ' })
		if len(fields) == 0 {
			return nil, inputError("--vector %d is empty", i)
		}
		vec := make([]float32, len(fields))
		for j, f := range fields {
			x, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, inputError("--vector %d: %q is not a number", i, f)
			}
			vec[j] = float32(x)
		}
		out[i] = vec
	}
	return out, nil
}
