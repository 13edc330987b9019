package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/audit"
	"github.com/ericksa/lexiguard/internal/pipeline"
	"github.com/ericksa/lexiguard/internal/store"
	apperrors "github.com/ericksa/lexiguard/pkg/errors"
)

const mcpUser = "mcp"

// Analyzer is the part of the pipeline service the tools drive.
type Analyzer interface {
	AnalyzeText(ctx context.Context, sub pipeline.TextSubmission) (*pipeline.Outcome, error)
	Contract(ctx context.Context, id string) (*store.Record, error)
	History(ctx context.Context) ([]*store.Record, error)
	AuditLog(ctx context.Context, limit int) ([]*store.AuditEvent, error)
}

type ToolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AnalyzeInput struct {
	Text     string `json:"text" jsonschema:"the full contract text to analyze"`
	Filename string `json:"filename,omitempty" jsonschema:"optional label stored with the analysis"`
}

type GetContractInput struct {
	ID string `json:"id" jsonschema:"ID of a stored contract analysis"`
}

type ListContractsInput struct{}

type ListAuditInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of events, newest first"`
}

type AnalyzeResult struct {
	ID        string          `json:"id"`
	RiskScore int             `json:"risk_score"`
	Summary   string          `json:"summary"`
	Details   []analysis.Risk `json:"details"`
	Duplicate bool            `json:"duplicate"`
}

type ContractSummary struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
	RiskScore int    `json:"risk_score"`
}

type toolFunc func(ctx context.Context, input json.RawMessage) (any, error)

type Handler struct {
	analyzer Analyzer
	audit    *audit.Auditor
	logger   *zap.Logger
	tools    map[string]toolFunc
	defs     []ToolDef
	server   *mcp.Server
	http     http.Handler
}

func NewHandler(analyzer Analyzer, auditor *audit.Auditor, logger *zap.Logger, version string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		analyzer: analyzer,
		audit:    auditor,
		logger:   logger,
		tools:    make(map[string]toolFunc),
	}
	h.initMCPServer(version)
	return h
}

func (h *Handler) initMCPServer(version string) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "LexiGuard",
		Version: version,
	}, nil)

	addTool(h, server, "analyze_contract",
		"Score a contract's clauses for legal risk and store the analysis. Identical text returns the stored result.",
		h.analyze)
	addTool(h, server, "get_contract",
		"Fetch a stored contract analysis by ID.",
		h.getContract)
	addTool(h, server, "list_contracts",
		"List stored contract analyses, newest first.",
		h.listContracts)
	addTool(h, server, "list_audit_logs",
		"List audit events, newest first.",
		h.listAudit)

	sort.Slice(h.defs, func(i, j int) bool { return h.defs[i].Name < h.defs[j].Name })
	h.server = server
	h.http = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

// addTool registers fn both as a typed MCP tool and as a raw JSON tool for
// ExecuteTool.
func addTool[In any](h *Handler, server *mcp.Server, name, description string, fn func(context.Context, In) (any, error)) {
	h.defs = append(h.defs, ToolDef{Name: name, Description: description})
	h.tools[name] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in In
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeValidation, "invalid input for "+name)
			}
		}
		return fn(ctx, in)
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		raw, _ := json.Marshal(in)
		result, err := h.ExecuteTool(ctx, name, raw)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: apperrors.Message(err)},
				},
			}, nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(result)},
			},
		}, nil, nil
	})
}

// Tools lists the registered tools by name.
func (h *Handler) Tools() []ToolDef {
	return append([]ToolDef(nil), h.defs...)
}

// ExecuteTool runs a tool with JSON arguments and returns its JSON result.
// Every call is audited.
func (h *Handler) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	fn, ok := h.tools[toolName]
	if !ok {
		return nil, apperrors.NotFound("tool not found: " + toolName)
	}
	out, err := fn(ctx, args)
	var result []byte
	if err == nil {
		result, err = json.Marshal(out)
	}
	status := "ok"
	if err != nil {
		status = err.Error()
		h.logger.Warn("mcp tool failed", zap.String("tool", toolName), zap.Error(err))
	}
	h.audit.Log(ctx, mcpUser, audit.ActionToolCall, fmt.Sprintf("%s: %s", toolName, status))
	return result, err
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.server == nil {
		http.Error(w, "MCP server not initialized", http.StatusInternalServerError)
		return
	}
	h.http.ServeHTTP(w, r)
}

func (h *Handler) analyze(ctx context.Context, in AnalyzeInput) (any, error) {
	out, err := h.analyzer.AnalyzeText(ctx, pipeline.TextSubmission{
		Text:     in.Text,
		Filename: in.Filename,
		Source:   "mcp",
		User:     mcpUser,
	})
	if err != nil {
		return nil, err
	}
	return AnalyzeResult{
		ID:        out.Record.ID,
		RiskScore: out.Record.RiskScore,
		Summary:   out.Record.Summary,
		Details:   out.Record.Risks,
		Duplicate: out.Duplicate,
	}, nil
}

func (h *Handler) getContract(ctx context.Context, in GetContractInput) (any, error) {
	return h.analyzer.Contract(ctx, in.ID)
}

func (h *Handler) listContracts(ctx context.Context, _ ListContractsInput) (any, error) {
	records, err := h.analyzer.History(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ContractSummary, 0, len(records))
	for _, r := range records {
		out = append(out, ContractSummary{
			ID:        r.ID,
			Filename:  r.Filename,
			Timestamp: r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			RiskScore: r.RiskScore,
		})
	}
	return out, nil
}

func (h *Handler) listAudit(ctx context.Context, in ListAuditInput) (any, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	return h.analyzer.AuditLog(ctx, limit)
}
