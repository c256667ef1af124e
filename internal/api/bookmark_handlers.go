package api

import (
	"net/http"

	"issuescout/internal/auth"
	"issuescout/internal/common"
	"issuescout/internal/domain"
	"issuescout/internal/service"
)

type issueRequest struct {
	Issue *domain.Issue `json:"issue"`
}

type deleteBookmarkRequest struct {
	IssueID *int64 `json:"issueId"`
}

type meResponse struct {
	UserID string `json:"userId"`
	Login  string `json:"login"`
}

func decodeIssue(r *http.Request) (domain.Issue, error) {
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		return domain.Issue{}, err
	}
	if req.Issue == nil || req.Issue.ID == 0 {
		return domain.Issue{}, common.NewError(common.ErrCodeValidation, "Missing issue data")
	}
	return *req.Issue, nil
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	bookmarks, err := s.bookmarks.ListBookmarks(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	jsonResponse(w, http.StatusOK, bookmarks)
}

func (s *Server) handleSaveBookmark(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	issue, err := decodeIssue(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bookmark, err := s.bookmarks.SaveBookmark(r.Context(), claims.UserID, issue)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, bookmark)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	var req deleteBookmarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IssueID == nil {
		jsonError(w, common.ErrCodeValidation, "Missing issueId")
		return
	}
	if err := s.bookmarks.DeleteBookmark(r.Context(), claims.UserID, *req.IssueID); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListRecentlyViewed(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	entries, err := s.recent.ListRecentlyViewed(r.Context(), claims.UserID, domain.RecentlyViewedLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.RecentlyViewed{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	issue, err := decodeIssue(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.recent.TrackView(r.Context(), claims.UserID, issue)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, entry)
}

// handleStats 控制台统计：书签总数、本周新增、最近浏览数
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	bookmarks, err := s.bookmarks.ListBookmarks(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recent, err := s.recent.ListRecentlyViewed(r.Context(), claims.UserID, domain.RecentlyViewedLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, service.ComputeDashboardStats(bookmarks, recent, s.nowFunc()))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	jsonResponse(w, http.StatusOK, meResponse{UserID: claims.UserID, Login: claims.Login})
}
