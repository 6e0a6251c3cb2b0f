// Copyright 2026 The Call-me-maybe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package callmemaybe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/bchene/Call-me-maybe/lib/functions"
	"github.com/bchene/Call-me-maybe/lib/pipeline"
	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
	"go.uber.org/zap"
)

// CallRequest is the body of POST /api/call.
type CallRequest struct {
	Prompt string `json:"prompt"`
}

// VersionResponse is the response for GET /api/version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// ArgInfo describes one declared argument.
type ArgInfo struct {
	Name string             `json:"name"`
	Type functions.TypeName `json:"type"`
}

// FunctionInfo describes a registered function.
type FunctionInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Args        []ArgInfo          `json:"args"`
	ReturnType  functions.TypeName `json:"return_type,omitempty"`
	Signature   string             `json:"signature"`
}

// FunctionsResponse is the response for GET /api/functions.
type FunctionsResponse struct {
	Functions []FunctionInfo `json:"functions"`
}

// API serves the call-me-maybe HTTP endpoints under /api.
type API struct {
	logger *zap.Logger
	node   *Node
}

// NewAPI creates the HTTP handler for the /api routes.
func NewAPI(logger *zap.Logger, node *Node) http.Handler {
	api := &API{
		logger: logger,
		node:   node,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/call", api.handleCall)
	mux.HandleFunc("GET /api/functions", api.handleFunctions)
	mux.HandleFunc("GET /api/version", api.handleVersion)
	return mux
}

func (a *API) handleCall(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	start := time.Now()

	// Apply backpressure via request queue
	release, err := a.node.requestQueue.Acquire(r.Context())
	if err != nil {
		status := http.StatusRequestTimeout
		switch err {
		case ErrQueueFull:
			status = http.StatusServiceUnavailable
			RecordQueueRejection()
			WriteQueueFullResponse(w, 5*time.Second)
		case ErrRequestTimeout:
			status = http.StatusGatewayTimeout
			RecordQueueTimeout()
			WriteTimeoutResponse(w)
		default:
			// Context cancelled
			http.Error(w, "request cancelled", status)
		}
		RecordRequestDuration("call", strconv.Itoa(status), time.Since(start).Seconds())
		return
	}
	defer release()

	// Update queue metrics
	UpdateQueueMetrics(a.node.requestQueue.Stats())

	var req CallRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		RecordRequestDuration("call", strconv.Itoa(http.StatusBadRequest), time.Since(start).Seconds())
		return
	}

	res, err := a.node.Call(r.Context(), req.Prompt)
	if err != nil {
		status := statusForError(err)
		a.logger.Error("Pipeline run failed", zap.Int("status", status), zap.Error(err))
		http.Error(w, err.Error(), status)
		RecordRequestDuration("call", strconv.Itoa(status), time.Since(start).Seconds())
		return
	}

	a.writeJSON(w, res)
	RecordRequestDuration("call", strconv.Itoa(http.StatusOK), time.Since(start).Seconds())
}

// statusForError maps errors from a pipeline run to HTTP statuses: setup
// problems are ours, anything else came from the model server.
func statusForError(err error) int {
	switch {
	case pipeline.IsConfigurationError(err):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (a *API) handleFunctions(w http.ResponseWriter, r *http.Request) {
	defs := a.node.registry.Definitions()
	resp := FunctionsResponse{Functions: make([]FunctionInfo, 0, len(defs))}
	for _, def := range defs {
		info := FunctionInfo{
			Name:        def.Name,
			Description: def.Description,
			Args:        make([]ArgInfo, 0, len(def.ArgNames())),
			ReturnType:  def.ReturnType,
			Signature:   def.Signature(),
		}
		for _, name := range def.ArgNames() {
			typ, _ := def.ArgType(name)
			info.Args = append(info.Args, ArgInfo{Name: name, Type: typ})
		}
		resp.Functions = append(resp.Functions, info)
	}
	a.writeJSON(w, resp)
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, VersionResponse{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	})
}

func (a *API) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := encoder.NewStreamEncoder(w).Encode(v); err != nil {
		a.logger.Error("encoding response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
