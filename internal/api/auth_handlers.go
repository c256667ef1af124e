package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"issuescout/internal/auth"
	"issuescout/internal/common"

	"github.com/google/uuid"
)

const oauthStateCookie = "issuescout_oauth_state"

type sessionResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Login     string    `json:"login"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleGitHubLogin 生成 state 写入 cookie 后跳转到 GitHub 授权页
func (s *Server) handleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oauth.Enabled() {
		jsonError(w, common.ErrCodeNotFound, "GitHub sign-in is not configured")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// handleGitHubCallback 校验 state，换取 GitHub 用户并签发会话 token
func (s *Server) handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oauth.Enabled() {
		jsonError(w, common.ErrCodeNotFound, "GitHub sign-in is not configured")
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		jsonError(w, common.ErrCodeValidation, "invalid OAuth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/github", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		jsonError(w, common.ErrCodeValidation, "missing OAuth code")
		return
	}

	user, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.authSvc.GenerateToken(user.ID, user.Login)
	if err != nil {
		writeError(w, r, common.WrapError(common.ErrCodeInternal, "issue session token", err))
		return
	}

	expiresAt := s.nowFunc().Add(s.authSvc.TTL())
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("[Auth] %s (%s) 登录成功", user.Login, user.ID)
	jsonResponse(w, http.StatusOK, sessionResponse{
		Token:     token,
		UserID:    user.ID,
		Login:     user.Login,
		ExpiresAt: expiresAt,
	})
}

// handleSignOut 清除会话 cookie，Bearer token 由客户端自行丢弃
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: auth.SessionCookie, Path: "/", MaxAge: -1})
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}
