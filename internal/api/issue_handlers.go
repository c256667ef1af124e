package api

import (
	"log"
	"net/http"

	"issuescout/internal/common"
	"issuescout/internal/domain"
)

type gitHubStatusResponse struct {
	Connected bool   `json:"connected"`
	Login     string `json:"login,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleSearchIssues GET /api/issues?languages=Go,Rust&labels=...&q=...&page=2
func (s *Server) handleSearchIssues(w http.ResponseWriter, r *http.Request) {
	query, err := domain.ParseQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.searcher.Search(r.Context(), query)
	if err != nil {
		s.metrics.observeSearch("error", 0)
		writeError(w, r, err)
		return
	}

	outcome := "ok"
	if result.Partial {
		outcome = "partial"
		log.Printf("[API] 部分语言搜索失败: %v", result.FailedLanguages)
	}
	s.metrics.observeSearch(outcome, result.RepoLookupFailures)
	if result.Items == nil {
		result.Items = []domain.Issue{}
	}
	jsonResponse(w, http.StatusOK, result)
}

// handleGitHubStatus 连接失败时仍返回 200，结果放在 connected 字段里
func (s *Server) handleGitHubStatus(w http.ResponseWriter, r *http.Request) {
	if s.github == nil {
		writeError(w, r, common.NewError(common.ErrCodeNotFound, "GitHub status check is not configured"))
		return
	}
	login, err := s.github.TestConnection(r.Context())
	if err != nil {
		jsonResponse(w, http.StatusOK, gitHubStatusResponse{Connected: false, Error: err.Error()})
		return
	}
	jsonResponse(w, http.StatusOK, gitHubStatusResponse{Connected: true, Login: login})
}
