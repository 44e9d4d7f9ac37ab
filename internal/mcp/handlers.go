package mcp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lorekeep/lorekeep/internal/graphsync"
	"github.com/lorekeep/lorekeep/internal/knowledge"
	"github.com/lorekeep/lorekeep/internal/solutions"
)

// auditTool appends an audit entry for one tool invocation.
func (s *Server) auditTool(tool string, start time.Time, err error, params map[string]string) {
	entry := AuditEntry{
		Timestamp:  start,
		Tool:       tool,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     "success",
		Params:     params,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	s.audit.Log(entry)
}

func (s *Server) handleLearnCommit(ctx context.Context, req *sdk.CallToolRequest, args LearnCommitInput) (_ *sdk.CallToolResult, out LearnCommitOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_learn_commit", start, retErr, map[string]string{"hash": args.Hash})
	}()

	if args.Hash == "" {
		out.Message = "hash is required"
		return nil, out, nil
	}

	rec, learned, err := s.learner.Learn(ctx, args.Hash)
	if err != nil {
		out.Message = fmt.Sprintf("failed to learn commit: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.AlreadyKnown = !learned
	out.Commit = rec
	if learned {
		out.Message = fmt.Sprintf("learned commit %s", args.Hash)
	} else {
		out.Message = fmt.Sprintf("commit %s was already known", args.Hash)
	}
	return nil, out, nil
}

func (s *Server) handleLearnRecent(ctx context.Context, req *sdk.CallToolRequest, args LearnRecentInput) (_ *sdk.CallToolResult, out LearnRecentOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_learn_recent", start, retErr, map[string]string{"count": strconv.Itoa(args.Count)})
	}()

	res, err := s.learner.LearnRecent(ctx, args.Count)
	if err != nil {
		out.Message = fmt.Sprintf("batch learn failed: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.Learned = res.Learned
	out.Skipped = res.Skipped
	out.Failed = res.Failed
	out.Errors = res.Errors
	out.Message = fmt.Sprintf("%d learned, %d already known, %d failed", res.Learned, res.Skipped, res.Failed)
	return nil, out, nil
}

func (s *Server) handleReportError(ctx context.Context, req *sdk.CallToolRequest, args ReportErrorInput) (_ *sdk.CallToolResult, out ReportErrorOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_report_error", start, retErr, map[string]string{"error_type": args.ErrorType})
	}()

	id, err := s.matcher.Report(ctx, knowledge.ErrorSolution{
		ErrorMessage:        args.ErrorMessage,
		ErrorType:           args.ErrorType,
		SolutionDescription: args.Solution,
		SolutionCode:        args.SolutionCode,
		SolutionFiles:       args.FilesChanged,
		SolutionSteps:       args.Steps,
		Tags:                args.Tags,
	})
	if err != nil {
		out.Message = fmt.Sprintf("failed to store solution: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.SolutionID = id
	out.Message = fmt.Sprintf("stored solution %d", id)
	return nil, out, nil
}

func (s *Server) handleFindSolutions(ctx context.Context, req *sdk.CallToolRequest, args FindSolutionsInput) (_ *sdk.CallToolResult, out FindSolutionsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_find_solutions", start, retErr, map[string]string{"error_type": args.ErrorType})
	}()

	if args.ErrorMessage == "" {
		out.Message = "error_message is required"
		return nil, out, nil
	}

	suggestion, err := s.matcher.AutoSuggest(ctx, args.ErrorMessage)
	if err != nil {
		out.Message = fmt.Sprintf("lookup failed: %v", err)
		return nil, out, nil
	}

	if suggestion.Source == "builtin" {
		out.Suggestion = suggestion
	}

	// The learned lookup runs regardless: a built-in hit still deserves
	// whatever the store knows, and the query filters apply either way.
	matches, err := s.matcher.FindSolutions(ctx, solutions.Query{
		ErrorMessage: args.ErrorMessage,
		ErrorType:    args.ErrorType,
		FilePath:     args.FilePath,
		Limit:        args.Limit,
	})
	if err != nil {
		out.Message = fmt.Sprintf("lookup failed: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.Matches = matches
	out.Count = len(matches)
	switch {
	case out.Suggestion != nil:
		out.Message = fmt.Sprintf("matched a built-in signature, plus %d learned candidates", len(matches))
	case len(matches) == 0:
		out.Message = "no stored solutions match"
	default:
		out.Message = fmt.Sprintf("%d candidate solutions", len(matches))
	}
	return nil, out, nil
}

func (s *Server) handleMarkOutcome(ctx context.Context, req *sdk.CallToolRequest, args MarkOutcomeInput) (_ *sdk.CallToolResult, out MarkOutcomeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_mark_outcome", start, retErr, map[string]string{
			"solution_id": strconv.FormatInt(args.SolutionID, 10),
			"succeeded":   strconv.FormatBool(args.Succeeded),
		})
	}()

	if err := s.matcher.RecordOutcome(ctx, args.SolutionID, args.Succeeded); err != nil {
		out.Message = fmt.Sprintf("failed to record outcome: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.Message = fmt.Sprintf("recorded outcome for solution %d", args.SolutionID)
	return nil, out, nil
}

func (s *Server) handleSync(ctx context.Context, req *sdk.CallToolRequest, args SyncInput) (_ *sdk.CallToolResult, out SyncOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_sync", start, retErr, map[string]string{"mode": args.Mode})
	}()

	var res *graphsync.Result
	var err error
	switch args.Mode {
	case "", "incremental":
		res, err = s.engine.IncrementalExport(ctx)
	case "full":
		res, err = s.engine.FullExport(ctx)
	case "bidirectional":
		res, err = s.engine.Bidirectional(ctx)
	case "import":
		res, err = s.engine.Import(ctx)
	default:
		out.Message = fmt.Sprintf("unknown sync mode %q", args.Mode)
		return nil, out, nil
	}
	if err != nil {
		out.Message = fmt.Sprintf("sync failed: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.Kind = string(res.Kind)
	out.Direction = string(res.Direction)
	out.Counts = res.Counts
	out.GraphSize = res.GraphSize
	out.Message = fmt.Sprintf("%s %s sync complete, graph holds %d records", res.Kind, res.Direction, res.GraphSize)
	return nil, out, nil
}

func (s *Server) handlePatternStatus(ctx context.Context, req *sdk.CallToolRequest, args PatternStatusInput) (_ *sdk.CallToolResult, out PatternStatusOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_pattern_status", start, retErr, nil)
	}()

	report, err := s.checker.Check(ctx)
	if err != nil {
		out.Message = fmt.Sprintf("freshness check failed: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.Current = report.Current
	out.New = report.New
	out.Missing = report.Missing
	out.Message = report.Summary()
	return nil, out, nil
}

func (s *Server) handleStats(ctx context.Context, req *sdk.CallToolRequest, args StatsInput) (_ *sdk.CallToolResult, out StatsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("lorekeep_stats", start, retErr, nil)
	}()

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		out.Message = fmt.Sprintf("failed to read stats: %v", err)
		return nil, out, nil
	}

	out.Success = true
	out.Stats = stats
	out.Message = fmt.Sprintf("%d entities, %d solutions, %d commits, %d patterns",
		stats.Entities, stats.ErrorSolutions, stats.Commits, stats.CodePatterns)

	if log, err := s.store.ListSyncLog(ctx, 1); err == nil && len(log) > 0 {
		out.LastSync = &log[0]
	}
	return nil, out, nil
}
