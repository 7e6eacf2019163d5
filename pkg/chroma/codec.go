// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

const apiPrefix = "/api/v1"

// metricMetadataKey is the collection metadata key Chroma stores the
// distance function under.
const metricMetadataKey = "hnsw:space"

// maxErrorBody bounds how much of an error response is read into messages.
const maxErrorBody = 4 << 10

// --- request bodies ---

type createCollectionRequest struct {
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Dimension   int            `json:"dimension,omitempty"`
	GetOrCreate bool           `json:"get_or_create"`
}

type modifyCollectionRequest struct {
	NewName     string         `json:"new_name,omitempty"`
	NewMetadata map[string]any `json:"new_metadata,omitempty"`
}

type recordsRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
	Documents  []*string        `json:"documents,omitempty"`
}

type getRequest struct {
	IDs           []string      `json:"ids,omitempty"`
	Where         Where         `json:"where,omitempty"`
	WhereDocument WhereDocument `json:"where_document,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	Offset        int           `json:"offset,omitempty"`
	Include       []Include     `json:"include"`
}

type deleteRequest struct {
	IDs           []string      `json:"ids,omitempty"`
	Where         Where         `json:"where,omitempty"`
	WhereDocument WhereDocument `json:"where_document,omitempty"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32   `json:"query_embeddings"`
	NResults        int           `json:"n_results"`
	Where           Where         `json:"where,omitempty"`
	WhereDocument   WhereDocument `json:"where_document,omitempty"`
	Include         []Include     `json:"include"`
}

// --- response bodies ---

type heartbeatResponse struct {
	NanosecondHeartbeat int64 `json:"nanosecond heartbeat"`
}

type collectionWire struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata"`
	Dimension *int           `json:"dimension"`
	Tenant    string         `json:"tenant"`
	Database  string         `json:"database"`
}

type getResponse struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
	Documents  []*string        `json:"documents"`
}

type queryResponse struct {
	IDs        [][]string         `json:"ids"`
	Distances  [][]float64        `json:"distances"`
	Metadatas  [][]map[string]any `json:"metadatas"`
	Documents  [][]*string        `json:"documents"`
	Embeddings [][][]float32      `json:"embeddings"`
}

// errorBody is the JSON error envelope returned by Chroma servers.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Detail is set by FastAPI validation failures.
	Detail json.RawMessage `json:"detail"`
}

// encodeRecords converts records to Chroma's columnar layout. Metadata and
// document columns are omitted entirely when no record carries them.
func encodeRecords(records []Record) recordsRequest {
	req := recordsRequest{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
	}

	var hasMeta, hasDocs bool
	for _, r := range records {
		hasMeta = hasMeta || r.Metadata != nil
		hasDocs = hasDocs || r.Document != nil
	}
	if hasMeta {
		req.Metadatas = make([]map[string]any, len(records))
	}
	if hasDocs {
		req.Documents = make([]*string, len(records))
	}

	for i, r := range records {
		req.IDs[i] = r.ID
		req.Embeddings[i] = r.Embedding
		if hasMeta {
			req.Metadatas[i] = r.Metadata
		}
		if hasDocs {
			req.Documents[i] = r.Document
		}
	}
	return req
}

// collectionPath returns /api/v1/collections[/elem...] with each element escaped.
func collectionPath(elems ...string) string {
	var b strings.Builder
	b.WriteString(apiPrefix + "/collections")
	for _, e := range elems {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(e))
	}
	return b.String()
}

// errorCodes selects which codes a failed response maps to for one operation.
type errorCodes struct {
	notFound chromaerr.Code
	conflict chromaerr.Code
}

var defaultErrorCodes = errorCodes{
	notFound: chromaerr.CodeCollectionNotFound,
	conflict: chromaerr.CodeCollectionCreateConflict,
}

// decodeError turns a non-2xx response into a coded error. Status decides
// first; 500s are further classified by the server's error type name because
// older Chroma releases report missing or duplicate collections that way.
func decodeError(resp *http.Response, codes errorCodes) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		case len(body.Detail) > 0:
			msg = string(body.Detail)
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	fields := []chromaerr.Attr{
		chromaerr.FieldStatus(resp.StatusCode),
		chromaerr.Field("server_error", body.Error),
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return chromaerr.New(codes.notFound, msg, fields...)
	case resp.StatusCode == http.StatusConflict:
		return chromaerr.New(codes.conflict, msg, fields...)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return chromaerr.New(chromaerr.CodeTransportUnauthorized, msg, fields...)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return chromaerr.New(chromaerr.CodeServerRequestInvalid, msg, fields...)
	}

	kind := strings.ToLower(body.Error + " " + msg)
	switch {
	case strings.Contains(kind, "uniqueconstraint") || strings.Contains(kind, "already exists"):
		return chromaerr.New(codes.conflict, msg, fields...)
	case strings.Contains(kind, "notfound") || strings.Contains(kind, "does not exist"):
		return chromaerr.New(codes.notFound, msg, fields...)
	case strings.Contains(kind, "invalidcollection") || strings.Contains(kind, "invaliddimension"):
		return chromaerr.New(chromaerr.CodeServerRequestInvalid, msg, fields...)
	}

	return chromaerr.New(chromaerr.CodeTransportUpstreamFailure,
		fmt.Sprintf("server returned status %d: %s", resp.StatusCode, msg), fields...)
}
