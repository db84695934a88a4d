// Package mcpserver exposes the gap pipeline as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/gaps/gap"
	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Version is reported to MCP clients.
var Version = "dev"

// Generator produces gap results. *gap.Service implements it.
type Generator interface {
	GenerateGapQuestion(ctx context.Context, ds gap.Datastore, userID string) gap.QuestionResult
	GenerateGapAnalysis(ctx context.Context, ds gap.Datastore, userID string) gap.AnalysisResult
}

// QuestionLog records asked questions and their answers. *store.Store
// implements it.
type QuestionLog interface {
	RecordProactiveQuestion(ctx context.Context, q *store.ProactiveQuestion) (int64, error)
	MarkQuestionAnswered(ctx context.Context, id int64, answeredAt time.Time) error
}

// Server holds the tool handlers and the MCP server they are registered on.
type Server struct {
	gen    Generator
	ds     gap.Datastore
	log    QuestionLog
	mcp    *server.MCPServer
	logger zerolog.Logger
}

// New creates the MCP server and registers every tool. questions may be nil,
// in which case the tools that write question history are not offered.
func New(gen Generator, ds gap.Datastore, questions QuestionLog, logger zerolog.Logger) *Server {
	s := &Server{
		gen:    gen,
		ds:     ds,
		log:    questions,
		logger: logger.With().Str("component", "mcpserver").Logger(),
	}

	s.mcp = server.NewMCPServer(
		"gaps",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	questionOpts := []mcp.ToolOption{
		mcp.WithDescription("Find the single most valuable missing fact about a user and one question that would close it."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The user to analyse")),
	}
	if questions != nil {
		questionOpts = append(questionOpts,
			mcp.WithBoolean("record", mcp.Description("Store the question as sent so later runs can see it")))
	}
	s.mcp.AddTool(mcp.NewTool("generate_gap_question", questionOpts...), s.handleQuestion)

	s.mcp.AddTool(mcp.NewTool("generate_gap_analysis",
		mcp.WithDescription("Rank the top three gaps in what is known about a user and recommend which to ask about first."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The user to analyse")),
	), s.handleAnalysis)

	if questions != nil {
		s.mcp.AddTool(mcp.NewTool("mark_question_answered",
			mcp.WithDescription("Record that the user answered a previously recorded question."),
			mcp.WithNumber("question_id", mcp.Required(), mcp.Description("Id returned when the question was recorded")),
		), s.handleAnswered)
	}
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info().Str("version", Version).Msg("Serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

type questionResponse struct {
	gap.QuestionResult
	QuestionID int64 `json:"question_id,omitempty"`
}

func (s *Server) handleQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := questionResponse{QuestionResult: s.gen.GenerateGapQuestion(ctx, s.ds, userID)}
	if s.log != nil && req.GetBool("record", false) {
		id, err := s.log.RecordProactiveQuestion(ctx, &store.ProactiveQuestion{
			UserID:   userID,
			Gap:      resp.Gap,
			Question: resp.Question,
			Source:   string(resp.Source),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record question")
			return mcp.NewToolResultError(fmt.Sprintf("question generated but not recorded: %v", err)), nil
		}
		resp.QuestionID = id
	}
	return jsonResult(resp)
}

func (s *Server) handleAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.gen.GenerateGapAnalysis(ctx, s.ds, userID))
}

func (s *Server) handleAnswered(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireFloat("question_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.log.MarkQuestionAnswered(ctx, int64(id), time.Now()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("question %d marked answered", int64(id))), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
