package tools

import (
	"fmt"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/config"
)

// Tool names.
const (
	NameSearch   = "tavily_search"
	NameFetch    = "fetch_url"
	NamePDF      = "analyze_pdf"
	NameDocument = "analyze_document"
	NameExecute  = "e2b_execute"
	NameThink    = "think_tool"
)

// OrchestratorTools are the tools of the top level agent.
var OrchestratorTools = []string{NameSearch, NameFetch, NamePDF, NameDocument, NameExecute, NameThink}

// ResearcherTools are the tools of the researcher sub-agent.
var ResearcherTools = []string{NameSearch, NameFetch, NamePDF, NameDocument, NameThink}

// NewDefaultRegistry registers every research tool configured from cfg.
func NewDefaultRegistry(cfg *config.Config) (*Registry, error) {
	sandbox, err := newCodeExecutor(cfg)
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	r.MustRegister((&Searcher{APIKey: cfg.TavilyAPIKey, BaseURL: cfg.TavilyBaseURL}).Tool())
	r.MustRegister(NewFetcher().Tool())
	r.MustRegister(AnalyzePDFTool())
	r.MustRegister(AnalyzeDocumentTool())
	r.MustRegister(sandbox.Tool())
	r.MustRegister(ThinkTool())
	return r, nil
}

func newCodeExecutor(cfg *config.Config) (*CodeExecutor, error) {
	switch cfg.SandboxBackend {
	case "", "e2b":
		exec := &CodeExecutor{
			Sandbox:        &E2BSandbox{APIKey: cfg.E2BAPIKey, Domain: cfg.E2BDomain},
			DefaultTimeout: cfg.SandboxTimeout,
		}
		if cfg.E2BAPIKey == "" {
			exec.MissingCredential = "E2B_API_KEY"
		}
		return exec, nil
	case "docker":
		sb, err := NewDockerSandbox(cfg.SandboxImage)
		if err != nil {
			return nil, err
		}
		return &CodeExecutor{Sandbox: sb, DefaultTimeout: cfg.SandboxTimeout}, nil
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", cfg.SandboxBackend)
	}
}
