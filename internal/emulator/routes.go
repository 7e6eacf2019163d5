// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package emulator

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

const apiPrefix = "/api/v1"

func (s *Server) registerRoutes() {
	// Bodies are decoded leniently and checked by the handlers, which
	// accept the nulls Chroma clients send for optional columns.
	system := []string{"system"}
	collections := []string{"collections"}
	records := []string{"records"}

	huma.Register(s.api, huma.Operation{
		OperationID: "heartbeat",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/heartbeat",
		Summary:     "Server clock in nanoseconds",
		Tags:        system,
	}, s.heartbeat)

	huma.Register(s.api, huma.Operation{
		OperationID: "version",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/version",
		Summary:     "Server version",
		Tags:        system,
	}, s.version)

	huma.Register(s.api, huma.Operation{
		OperationID: "reset",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/reset",
		Summary:     "Delete every collection",
		Tags:        system,
	}, s.reset)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-collections",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/collections",
		Summary:     "List collections",
		Tags:        collections,
	}, s.listCollections)

	huma.Register(s.api, huma.Operation{
		OperationID:      "create-collection",
		Method:           http.MethodPost,
		Path:             apiPrefix + "/collections",
		Summary:          "Create a collection",
		Tags:             collections,
		SkipValidateBody: true,
	}, s.createCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "count-collections",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/count_collections",
		Summary:     "Count collections",
		Tags:        collections,
	}, s.countCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-collection",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/collections/{collection}",
		Summary:     "Get a collection by name",
		Tags:        collections,
	}, s.getCollection)

	huma.Register(s.api, huma.Operation{
		OperationID:      "modify-collection",
		Method:           http.MethodPut,
		Path:             apiPrefix + "/collections/{collection}",
		Summary:          "Rename a collection or replace its metadata",
		Tags:             collections,
		SkipValidateBody: true,
	}, s.modifyCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-collection",
		Method:      http.MethodDelete,
		Path:        apiPrefix + "/collections/{collection}",
		Summary:     "Delete a collection by name",
		Tags:        collections,
	}, s.deleteCollection)

	huma.Register(s.api, huma.Operation{
		OperationID:      "add-records",
		Method:           http.MethodPost,
		Path:             apiPrefix + "/collections/{collection}/add",
		Summary:          "Add records",
		Tags:             records,
		DefaultStatus:    http.StatusCreated,
		SkipValidateBody: true,
	}, s.addRecords)

	huma.Register(s.api, huma.Operation{
		OperationID:      "upsert-records",
		Method:           http.MethodPost,
		Path:             apiPrefix + "/collections/{collection}/upsert",
		Summary:          "Insert or replace records",
		Tags:             records,
		SkipValidateBody: true,
	}, s.upsertRecords)

	huma.Register(s.api, huma.Operation{
		OperationID:      "get-records",
		Method:           http.MethodPost,
		Path:             apiPrefix + "/collections/{collection}/get",
		Summary:          "Fetch records by ID or filter",
		Tags:             records,
		SkipValidateBody: true,
	}, s.getRecords)

	huma.Register(s.api, huma.Operation{
		OperationID:      "delete-records",
		Method:           http.MethodPost,
		Path:             apiPrefix + "/collections/{collection}/delete",
		Summary:          "Delete records by ID or filter",
		Tags:             records,
		SkipValidateBody: true,
	}, s.deleteRecords)

	huma.Register(s.api, huma.Operation{
		OperationID: "count-records",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/collections/{collection}/count",
		Summary:     "Count records",
		Tags:        records,
	}, s.countRecords)

	huma.Register(s.api, huma.Operation{
		OperationID:      "query-records",
		Method:           http.MethodPost,
		Path:             apiPrefix + "/collections/{collection}/query",
		Summary:          "Nearest-neighbour query",
		Tags:             records,
		SkipValidateBody: true,
	}, s.queryRecords)
}
