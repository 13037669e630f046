package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"finanse/internal/core"
	applog "finanse/internal/log"
	"finanse/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.backend != nil {
		if err := s.backend.Ping(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "not_checked"
	}

	// merges fall back to synchronous application without a queue
	switch {
	case s.queue == nil:
		checks["merge_queue"] = "not_configured"
	case s.queue.Healthy():
		checks["merge_queue"] = "ok"
	default:
		checks["merge_queue"] = "degraded"
	}

	checks["cache"] = map[string]any{
		"dashboard_entries": s.report.Cache().Size(),
		"status":            "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	reports := atomic.LoadInt64(&s.appMetrics.reports)
	merges := atomic.LoadInt64(&s.appMetrics.merges)
	retries := atomic.LoadInt64(&s.appMetrics.retries)
	milestones := atomic.LoadInt64(&s.appMetrics.milestones)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP reports_total Total number of dashboards served\n")
	fmt.Fprintf(w, "# TYPE reports_total counter\n")
	fmt.Fprintf(w, "reports_total %d\n\n", reports)

	fmt.Fprintf(w, "# HELP merges_total Total number of merges applied or queued\n")
	fmt.Fprintf(w, "# TYPE merges_total counter\n")
	fmt.Fprintf(w, "merges_total %d\n\n", merges)

	fmt.Fprintf(w, "# HELP merge_retries_total Total number of deletion retries\n")
	fmt.Fprintf(w, "# TYPE merge_retries_total counter\n")
	fmt.Fprintf(w, "merge_retries_total %d\n\n", retries)

	fmt.Fprintf(w, "# HELP milestones_created_total Total number of milestones created\n")
	fmt.Fprintf(w, "# TYPE milestones_created_total counter\n")
	fmt.Fprintf(w, "milestones_created_total %d\n\n", milestones)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"dashboard\"} %d\n\n", s.report.Cache().Size())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP blocked_requests_total Requests rejected for their method\n")
	fmt.Fprintf(w, "# TYPE blocked_requests_total counter\n")
	fmt.Fprintf(w, "blocked_requests_total %d\n\n", securityMetrics.BlockedRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	period, err := ParsePeriodParam(r.URL.Query(), s.report.CurrentPeriod())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	dash, err := s.report.Dashboard(r.Context(), period)
	if err != nil {
		s.fail(w, r, "Failed to build dashboard", applog.OpReport, err, applog.NewFields().WithPeriod(period.String()))
		return
	}
	atomic.AddInt64(&s.appMetrics.reports, 1)
	NewJSONResponse().Data(dash).Write(w)
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	year, err := ParseYearParam(r.URL.Query(), s.report.CurrentPeriod().Year)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	usage, err := s.report.Limits(r.Context(), year)
	if err != nil {
		s.fail(w, r, "Failed to compute limits", applog.OpReport, err, nil)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"year":          year,
		"base_currency": s.report.BaseCurrency(),
		"limits":        usage,
	}).Write(w)
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	groups, err := s.merge.Groups(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to detect duplicates", applog.OpRead, err, nil)
		return
	}
	NewJSONResponse().Data(map[string]any{"groups": groups}).Write(w)
}

// handleMerge plans a merge of asset_ids and applies or queues it unless
// dry_run is set.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	ids := body.GetList("asset_ids")
	if len(ids) < 2 {
		UnprocessableEntityError("asset_ids needs at least two ids").Write(w)
		return
	}

	ctx := r.Context()
	plan, err := s.merge.Plan(ctx, ids, body.Get("primary_id"))
	if err != nil {
		s.fail(w, r, "Failed to plan merge", applog.OpMerge, err, applog.NewFields().WithMerge(body.Get("primary_id"), ids))
		return
	}
	if name := body.Get("name"); name != "" {
		plan.ResultingName = name
	}
	if notes := body.Get("notes"); notes != "" {
		plan.ResultingNotes = notes
	}
	if body.GetBool("dry_run") {
		NewJSONResponse().Data(services.MergeResult{Plan: plan}).Write(w)
		return
	}

	res, err := s.merge.Submit(ctx, plan)
	if err != nil {
		s.fail(w, r, "Failed to apply merge", applog.OpMerge, err, applog.NewFields().WithMerge(plan.PrimaryAssetID, plan.MergedAssetIDs))
		return
	}
	atomic.AddInt64(&s.appMetrics.merges, 1)

	status := http.StatusOK
	if res.Queued {
		status = http.StatusAccepted
	}
	NewJSONResponse().Status(status).Data(res).Write(w)
}

// handleMergeRetry deletes the remaining duplicates of a partially applied
// merge.
func (s *Server) handleMergeRetry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	primaryID := body.Get("primary_id")
	remaining := body.GetList("remaining")
	if primaryID == "" || len(remaining) == 0 {
		UnprocessableEntityError("primary_id and remaining are required").Write(w)
		return
	}

	deleted, err := s.merge.RetryDeletions(r.Context(), primaryID, remaining)
	if err != nil {
		s.fail(w, r, "Failed to retry merge deletions", applog.OpRetry, err, applog.NewFields().WithMerge(primaryID, remaining))
		return
	}
	atomic.AddInt64(&s.appMetrics.retries, 1)
	NewJSONResponse().Data(map[string]any{
		"primary_id": primaryID,
		"deleted":    deleted,
	}).Write(w)
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.milestones.List(r.Context())
		if err != nil {
			s.fail(w, r, "Failed to list milestones", applog.OpList, err, nil)
			return
		}
		if list == nil {
			list = []core.Milestone{}
		}
		NewJSONResponse().Data(map[string]any{"milestones": list}).Write(w)
	case http.MethodPost:
		body, resp := ParseBodyOrFail(r)
		if resp != nil {
			resp.Write(w)
			return
		}
		target, err := core.ParseAmount(body.Get("target"))
		if err != nil {
			UnprocessableEntityError(fmt.Sprintf("target: %v", err)).Write(w)
			return
		}
		category := body.Get("category")
		if category == "" {
			category = core.ScopeAll
		}

		m, err := s.milestones.Create(r.Context(), target, category)
		if err != nil {
			s.fail(w, r, "Failed to create milestone", applog.OpCreate, err, nil)
			return
		}
		atomic.AddInt64(&s.appMetrics.milestones, 1)
		NewJSONResponse().
			Status(http.StatusCreated).
			Header("Location", "/api/milestones/"+m.ID).
			Data(m).
			Write(w)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleMilestone(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	id := sanitizeInput(r.PathValue("id"))
	if err := s.milestones.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "Failed to delete milestone", applog.OpDelete, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail writes the response for err and logs what the client cannot act on.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg, operation string, err error, fields applog.LogFields) {
	resp := DomainError(err)
	if resp.statusCode >= http.StatusInternalServerError || resp.statusCode == http.StatusMultiStatus {
		applog.LogError(r.Context(), msg, err, operation, fields)
	}
	resp.Write(w)
}
