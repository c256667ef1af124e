package auth

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"issuescout/internal/common"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

// GitHubUser 是 OAuth 登录后拿到的 GitHub 用户
type GitHubUser struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// GitHubOAuth 处理 GitHub OAuth 授权码流程
type GitHubOAuth struct {
	config     *oauth2.Config
	apiBaseURL *url.URL
}

// NewGitHubOAuth 使用 GitHub 的 OAuth 端点，申请 read:user 和 user:email 权限
func NewGitHubOAuth(clientID, clientSecret, redirectURL string) *GitHubOAuth {
	return &GitHubOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     githuboauth.Endpoint,
		},
	}
}

// WithEndpoints 替换授权端点和 API 地址 (GitHub Enterprise 或测试服务器)
func (o *GitHubOAuth) WithEndpoints(authURL, tokenURL, apiBaseURL string) (*GitHubOAuth, error) {
	o.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	if apiBaseURL != "" {
		if !strings.HasSuffix(apiBaseURL, "/") {
			apiBaseURL += "/"
		}
		u, err := url.Parse(apiBaseURL)
		if err != nil {
			return nil, common.WrapError(common.ErrCodeValidation, "invalid GitHub API url", err)
		}
		o.apiBaseURL = u
	}
	return o, nil
}

// Enabled 是否配置了 OAuth 应用
func (o *GitHubOAuth) Enabled() bool {
	return o != nil && o.config.ClientID != "" && o.config.ClientSecret != ""
}

// AuthCodeURL 返回跳转到 GitHub 授权页的地址
func (o *GitHubOAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange 用授权码换取 token 并查询当前 GitHub 用户
func (o *GitHubOAuth) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeUnauthenticated, "GitHub OAuth exchange failed", err)
	}

	client := github.NewClient(o.config.Client(ctx, token))
	if o.apiBaseURL != nil {
		client.BaseURL = o.apiBaseURL
	}
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, common.WrapError(common.ErrCodeUpstream, "fetch GitHub user", err)
	}

	return &GitHubUser{
		ID:        strconv.FormatInt(user.GetID(), 10),
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		Email:     user.GetEmail(),
		AvatarURL: user.GetAvatarURL(),
	}, nil
}
