package session

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/reflinks/history"
	"github.com/hazyhaar/reflinks/journal"
	"github.com/hazyhaar/reflinks/kit"
)

// PageInfo is the result of the visit and click tools.
type PageInfo struct {
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Permanent []string `json:"permanent,omitempty"`
}

// Page is the result of reflinks_page.
type Page struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

// RegisterMCP registers the session tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerVisitTool(srv)
	s.registerClickTool(srv)
	s.registerPageTool(srv)
	s.registerHistoryTool(srv)
	if s.journal != nil {
		s.registerJournalTool(srv)
	}
}

func (s *Session) pageInfo(path string) *PageInfo {
	return &PageInfo{Path: path, Title: s.Title(), Permanent: s.PermanentIDs()}
}

func (s *Session) latestPath() string {
	entries := s.History()
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].Path
}

type visitReq struct {
	Path string `json:"path"`
}

func (s *Session) registerVisitTool(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reflinks_visit",
		Description: "Navigate the session to a path and swap in the new page root.",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Destination path, e.g. /about"},
		}, []string{"path"}),
	}, func(ctx context.Context, r *visitReq) (any, error) {
		if r.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		if err := s.Visit(ctx, r.Path); err != nil {
			return nil, err
		}
		return s.pageInfo(r.Path), nil
	})
}

type clickReq struct {
	Selector string `json:"selector"`
}

func (s *Session) registerClickTool(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reflinks_click",
		Description: "Follow the first link matching a CSS selector, as a click would.",
		InputSchema: kit.InputSchema(map[string]any{
			"selector": map[string]any{"type": "string", "description": "CSS selector of the link, e.g. a#next"},
		}, []string{"selector"}),
	}, func(ctx context.Context, r *clickReq) (any, error) {
		if r.Selector == "" {
			return nil, fmt.Errorf("selector is required")
		}
		if err := s.Click(ctx, r.Selector); err != nil {
			return nil, err
		}
		return s.pageInfo(s.latestPath()), nil
	})
}

type pageReq struct {
	Format string `json:"format"`
}

func (s *Session) registerPageTool(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reflinks_page",
		Description: "Return the current page: the root as markdown (default) or html, the whole document, or the title.",
		InputSchema: kit.InputSchema(map[string]any{
			"format": map[string]any{
				"type": "string",
				"enum": []string{"markdown", "html", "document", "title"},
			},
		}, nil),
	}, func(_ context.Context, r *pageReq) (any, error) {
		format := r.Format
		if format == "" {
			format = "markdown"
		}
		var content string
		switch format {
		case "markdown":
			md, err := s.Markdown()
			if err != nil {
				return nil, err
			}
			content = md
		case "html":
			content = s.RootHTML()
		case "document":
			content = s.HTML()
		case "title":
			content = s.Title()
		default:
			return nil, fmt.Errorf("unknown format %q", format)
		}
		return &Page{Format: format, Content: content}, nil
	})
}

type historyReq struct{}

func (s *Session) registerHistoryTool(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reflinks_history",
		Description: "List the session history, oldest first.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(context.Context, *historyReq) (any, error) {
		return map[string][]history.Entry{"entries": s.History()}, nil
	})
}

type journalReq struct {
	Limit int `json:"limit"`
}

func (s *Session) registerJournalTool(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "reflinks_journal",
		Description: "List recent visits with their outcome, newest first.",
		InputSchema: kit.InputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max entries (default 50)"},
		}, nil),
	}, func(ctx context.Context, r *journalReq) (any, error) {
		entries, err := s.journal.Recent(ctx, r.Limit)
		if err != nil {
			return nil, err
		}
		return map[string][]journal.Entry{"entries": entries}, nil
	})
}
