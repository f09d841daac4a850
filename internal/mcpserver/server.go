// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes skillvault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/skillvault/internal/apperr"
	"github.com/starford/skillvault/internal/render"
	"github.com/starford/skillvault/internal/skillservice"
)

const contractURI = "skillvault://mention-format"

// Server wraps the MCP server with skillvault tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *skillservice.Service
	actor string
}

// New creates a new MCP server with all tools registered. actor is the user
// the tools act as; when empty, reads see every skill and writes are refused.
func New(svc *skillservice.Service, actor string) *Server {
	s := &Server{svc: svc, actor: actor}

	s.mcp = server.NewMCPServer(
		"skillvault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("read_skill",
		mcp.WithDescription("Read a skill. Mentions of other skills and resources are rendered "+
			"as instructions telling you what to fetch next."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill UUID")),
		mcp.WithString("mode", mcp.Description("instructions (default), plain or raw")),
	), s.readSkill)

	s.mcp.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List available skills with their ids and descriptions."),
	), s.listSkills)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("List the skills and resources a skill mentions, and the skills mentioning it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill UUID")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("check_mentions",
		mcp.WithDescription("Check skill markdown for malformed mention tokens before saving."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Skill markdown")),
	), s.checkMentions)

	s.mcp.AddTool(mcp.NewTool("update_skill_markdown",
		mcp.WithDescription("Replace the markdown of a skill you own. Mention links are rebuilt from "+
			"the new markdown. Read the mention contract first via the get_mention_contract tool."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill UUID")),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("New skill markdown")),
	), s.updateSkillMarkdown)

	s.mcp.AddTool(mcp.NewTool("get_mention_contract",
		mcp.WithDescription("Returns the mention token format used in skill markdown."),
	), s.getMentionContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Mention Format",
			mcp.WithResourceDescription("How skill markdown references skills and resources."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) viewer() *string {
	if s.actor == "" {
		return nil
	}
	return &s.actor
}

func toolError(err error) *mcp.CallToolResult {
	var invalid *skillservice.InvalidMentionsError
	switch {
	case errors.As(err, &invalid):
		return mcp.NewToolResultError(invalid.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) readSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := render.Options{Mode: render.ModeInstructions}
	mode := "instructions"
	if m, err := req.RequireString("mode"); err == nil && m != "" {
		mode = m
	}
	switch mode {
	case "instructions":
	case "plain":
		opts.Mode = render.ModePlain
	case "raw":
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q", mode)), nil
	}

	sk, err := s.svc.GetSkill(ctx, s.viewer(), id, opts)
	if err != nil {
		return toolError(err), nil
	}
	if mode == "raw" {
		return mcp.NewToolResultText(sk.Markdown), nil
	}
	return mcp.NewToolResultText(sk.RenderedMarkdown), nil
}

func (s *Server) listSkills(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListSkills(ctx, s.viewer(), 0)
	if err != nil {
		return toolError(err), nil
	}
	lines := make([]string, 0, len(items))
	for _, sk := range items {
		line := sk.ID + "  " + sk.Name
		if sk.Description != "" {
			line += ": " + sk.Description
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no skills found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, in, err := s.svc.Links(ctx, s.viewer(), id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"outgoing": out, "incoming": in}), nil
}

func (s *Server) checkMentions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	md, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.ValidateMarkdown(md)), nil
}

func (s *Server) updateSkillMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.actor == "" {
		return mcp.NewToolResultError("no acting user configured"), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.UpdateSkillMarkdown(ctx, s.actor, id, md, ""); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", id)), nil
}

func (s *Server) getMentionContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MentionFormatContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     MentionFormatContract,
		},
	}, nil
}
