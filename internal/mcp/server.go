package mcp

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lorekeep/lorekeep/internal/freshness"
	"github.com/lorekeep/lorekeep/internal/gitlearn"
	"github.com/lorekeep/lorekeep/internal/graphsync"
	"github.com/lorekeep/lorekeep/internal/knowledge"
	"github.com/lorekeep/lorekeep/internal/solutions"
)

// Server wraps the MCP SDK server around the daemon's components.
type Server struct {
	server  *sdk.Server
	store   *knowledge.Store
	matcher *solutions.Matcher
	learner *gitlearn.Learner
	checker *freshness.Checker
	engine  *graphsync.Engine
	logger  *slog.Logger
	audit   *AuditLogger
}

// Config identifies the server to MCP clients.
type Config struct {
	Name    string
	Version string
}

// Deps are the already-constructed components the server exposes.
type Deps struct {
	Store    *knowledge.Store
	Matcher  *solutions.Matcher
	Learner  *gitlearn.Learner
	Checker  *freshness.Checker
	Engine   *graphsync.Engine
	Logger   *slog.Logger
	AuditDir string
}

// NewServer creates the MCP server and registers the lorekeep tools.
func NewServer(cfg Config, deps Deps) *Server {
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:  mcpServer,
		store:   deps.Store,
		matcher: deps.Matcher,
		learner: deps.Learner,
		checker: deps.Checker,
		engine:  deps.Engine,
		logger:  deps.Logger,
		audit:   NewAuditLogger(deps.AuditDir),
	}
	s.registerTools()
	return s
}

// registerTools registers all lorekeep MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_learn_commit",
		Description: "Learn a commit: parse its message and metadata block, detect patterns, and store the derived knowledge",
	}, s.handleLearnCommit)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_learn_recent",
		Description: "Learn a batch of recent commits, skipping ones already known",
	}, s.handleLearnRecent)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_report_error",
		Description: "Store an error/solution pair for future matching",
	}, s.handleReportError)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_find_solutions",
		Description: "Find ranked candidate solutions for an error message, checking built-in signatures first",
	}, s.handleFindSolutions)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_mark_outcome",
		Description: "Record whether a suggested solution actually worked",
	}, s.handleMarkOutcome)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_sync",
		Description: "Run a sync pass against the external knowledge graph (full, incremental, bidirectional, or import)",
	}, s.handleSync)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_pattern_status",
		Description: "Report pattern freshness: which declared patterns are current, new, or missing",
	}, s.handlePatternStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "lorekeep_stats",
		Description: "Report store row counts and the most recent sync pass",
	}, s.handleStats)
}

// Run serves MCP over stdio until the client disconnects or the context is
// cancelled. SIGINT/SIGTERM trigger a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	s.audit.Close()
	return err
}

// Close releases the server's resources.
func (s *Server) Close() error {
	return s.audit.Close()
}
