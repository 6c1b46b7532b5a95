package summarizer

import (
	"context"
	"fmt"
	"strings"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/cli"
	"github.com/universal-tool-calling-protocol/go-utcp/src/repository"
	"github.com/universal-tool-calling-protocol/go-utcp/src/tools"
	"github.com/universal-tool-calling-protocol/go-utcp/src/transports"
)

type summarizerCLITransport struct {
	inner repository.ClientTransport
	tools map[string][]tools.Tool
}

func (t *summarizerCLITransport) RegisterToolProvider(ctx context.Context, prov base.Provider) ([]tools.Tool, error) {
	p, ok := prov.(*cli.CliProvider)
	if !ok {
		if t.inner != nil {
			return t.inner.RegisterToolProvider(ctx, prov)
		}
		return nil, fmt.Errorf("unsupported provider type %T", prov)
	}
	if t.tools == nil {
		t.tools = make(map[string][]tools.Tool)
	}
	list, ok := t.tools[p.Name]
	if !ok {
		if t.inner != nil {
			return t.inner.RegisterToolProvider(ctx, prov)
		}
		return nil, fmt.Errorf("summarizer tools not found for provider %s", p.Name)
	}
	return list, nil
}

func (t *summarizerCLITransport) DeregisterToolProvider(ctx context.Context, prov base.Provider) error {
	if p, ok := prov.(*cli.CliProvider); ok {
		if _, ok := t.tools[p.Name]; ok {
			delete(t.tools, p.Name)
			return nil
		}
	}
	if t.inner != nil {
		return t.inner.DeregisterToolProvider(ctx, prov)
	}
	return nil
}

func (t *summarizerCLITransport) CallTool(ctx context.Context, toolName string, args map[string]any, prov base.Provider, _ *string) (any, error) {
	if p, ok := prov.(*cli.CliProvider); ok {
		if list, ok := t.tools[p.Name]; ok {
			for _, tool := range list {
				if tool.Name == toolName || strings.HasSuffix(tool.Name, "."+toolName) {
					if tool.Handler == nil {
						return nil, fmt.Errorf("tool %s has no handler", toolName)
					}
					return tool.Handler(ctx, args)
				}
			}
		}
		if t.inner != nil {
			return t.inner.CallTool(ctx, toolName, args, prov, nil)
		}
		return nil, fmt.Errorf("tool %s not found for provider %s", toolName, p.Name)
	}
	if t.inner != nil {
		return t.inner.CallTool(ctx, toolName, args, prov, nil)
	}
	return nil, fmt.Errorf("unsupported provider type %T", prov)
}

func (t *summarizerCLITransport) CallToolStream(ctx context.Context, toolName string, args map[string]any, prov base.Provider) (transports.StreamResult, error) {
	if p, ok := prov.(*cli.CliProvider); ok {
		if _, ok := t.tools[p.Name]; ok {
			return nil, fmt.Errorf("streaming not supported for tool %s (provider %s)", toolName, p.Name)
		}
	}
	if t.inner != nil {
		return t.inner.CallToolStream(ctx, toolName, args, prov)
	}
	return nil, fmt.Errorf("unsupported provider type %T", prov)
}

// AsUTCPTool exposes the summarizer as a UTCP tool with an in-process handler.
// The tool accepts:
// - range (required): window expression such as "3h" or "1d"
// - user (optional): restrict the summary to one author
func (s *RecursiveSummarizer) AsUTCPTool(name, description string) tools.Tool {
	providerName := strings.TrimSpace(name)
	if parts := strings.Split(name, "."); len(parts) > 1 {
		providerName = parts[0]
	}
	return tools.Tool{
		Name:        name,
		Description: description,
		Provider: &base.BaseProvider{
			Name:         providerName,
			ProviderType: base.ProviderCLI, // in-process handler, no remote transport
		},
		Inputs: tools.ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]any{
				"range": map[string]any{
					"type":        "string",
					"description": "Time window to summarize, e.g. \"3h\" or \"1d\".",
				},
				"user": map[string]any{
					"type":        "string",
					"description": "Optional author filter; empty summarizes everyone.",
				},
			},
			Required: []string{"range"},
		},
		Outputs: tools.ToolInputOutputSchema{
			Type: "object",
			Properties: map[string]any{
				"summary":       map[string]any{"type": "string"},
				"message_count": map[string]any{"type": "integer"},
				"start":         map[string]any{"type": "string"},
				"end":           map[string]any{"type": "string"},
				"truncated":     map[string]any{"type": "boolean"},
			},
		},
		Handler: tools.ToolHandler(func(ctx context.Context, inputs map[string]interface{}) (any, error) {
			rangeExpr, ok := inputs["range"].(string)
			if !ok || strings.TrimSpace(rangeExpr) == "" {
				return nil, fmt.Errorf("missing or invalid 'range'")
			}
			userFilter, _ := inputs["user"].(string)

			execCtx := ctx
			if execCtx == nil {
				execCtx = context.Background()
			}

			res, err := s.SummarizeWindow(execCtx, rangeExpr, strings.TrimSpace(userFilter))
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"summary":       res.Summary.Content,
				"message_count": res.Summary.MessageCount,
				"start":         res.Summary.TimeRangeStart.Format("2006-01-02 15:04:05"),
				"end":           res.Summary.TimeRangeEnd.Format("2006-01-02 15:04:05"),
				"truncated":     res.Truncated,
			}, nil
		}),
	}
}

// RegisterAsUTCPProvider registers the summarizer as a UTCP tool on the
// provided client. It installs a lightweight in-process transport to route
// CallTool invocations directly to SummarizeWindow.
func (s *RecursiveSummarizer) RegisterAsUTCPProvider(ctx context.Context, client utcp.UtcpClientInterface, name, description string) error {
	if client == nil {
		return fmt.Errorf("utcp client is nil")
	}

	tool := s.AsUTCPTool(name, description)
	providerName := strings.TrimSpace(name)
	if parts := strings.Split(name, "."); len(parts) > 1 {
		providerName = parts[0]
	}

	tp := &cli.CliProvider{
		BaseProvider: base.BaseProvider{
			Name:         providerName,
			ProviderType: base.ProviderCLI,
		},
	}

	transportsMap := client.GetTransports()
	if transportsMap == nil {
		return fmt.Errorf("utcp client transports map is nil")
	}

	existing := transportsMap[string(base.ProviderCLI)]
	var shim *summarizerCLITransport
	if maybe, ok := existing.(*summarizerCLITransport); ok {
		shim = maybe
	} else {
		shim = &summarizerCLITransport{inner: existing}
		transportsMap[string(base.ProviderCLI)] = shim
	}
	if shim.tools == nil {
		shim.tools = make(map[string][]tools.Tool)
	}
	shim.tools[tp.Name] = []tools.Tool{tool}

	_, err := client.RegisterToolProvider(ctx, tp)
	return err
}
