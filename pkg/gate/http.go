package gate

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/toolgate/pkg/httputil"
	"github.com/platinummonkey/toolgate/pkg/observability"
	"github.com/platinummonkey/toolgate/pkg/registry"
)

// JSON-RPC error codes used on the protocol endpoint.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
)

const protocolVersion = "2024-11-05"

// rpcRequest is the protocol request envelope. AuthToken is the in-payload
// credential some clients send when they cannot set headers; the transport
// Authorization header always wins over it.
type rpcRequest struct {
	JSONRPC   string          `json:"jsonrpc"`
	ID        json.RawMessage `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	AuthToken string          `json:"auth_token,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Handler serves the protocol endpoint, gating tools/list by the caller's
// visibility tier.
type Handler struct {
	gate       *Gate
	serverName string
	version    string
	logger     *observability.Logger
}

// NewHandler creates the protocol HTTP handler.
func NewHandler(gate *Gate, serverName, version string, logger *observability.Logger) *Handler {
	return &Handler{
		gate:       gate,
		serverName: serverName,
		version:    version,
		logger:     logger,
	}
}

// RegisterRoutes registers the protocol endpoint on the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/mcp", h.HandleRPC).Methods("POST")
}

// extractToken pulls the caller credential from the request. The transport
// header takes precedence; the in-payload field is consulted only when no
// header credential is present.
func extractToken(r *http.Request, req *rpcRequest) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token
		}
	}
	return req.AuthToken
}

// HandleRPC dispatches one protocol request.
func (h *Handler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, nil, codeParseError, "parse error")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.writeError(w, req.ID, codeInvalidRequest, "invalid request")
		return
	}

	identity := h.gate.ResolveIdentity(r.Context(), extractToken(r, &req))

	switch req.Method {
	case "initialize":
		h.handleInitialize(w, req)
	case "ping":
		h.writeResult(w, req.ID, map[string]interface{}{})
	case "tools/list":
		h.handleToolsList(w, r, req, identity)
	default:
		h.writeError(w, req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (h *Handler) handleInitialize(w http.ResponseWriter, req rpcRequest) {
	h.writeResult(w, req.ID, map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		"serverInfo": map[string]interface{}{
			"name":    h.serverName,
			"version": h.version,
		},
	})
}

// toolDescriptor is the wire shape of one discoverable tool.
type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

func (h *Handler) handleToolsList(w http.ResponseWriter, r *http.Request, req rpcRequest, identity Identity) {
	visible := h.gate.Discover(r.Context(), identity)

	tools := make([]toolDescriptor, 0, len(visible))
	for _, d := range visible {
		tools = append(tools, descriptorToWire(d))
	}

	h.writeResult(w, req.ID, map[string]interface{}{"tools": tools})
}

func descriptorToWire(d registry.Descriptor) toolDescriptor {
	schema := d.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	return toolDescriptor{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: schema,
	}
}

// Protocol errors are still HTTP 200; the failure lives in the envelope.
func (h *Handler) writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	httputil.WriteJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

func (h *Handler) writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	httputil.WriteJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}
