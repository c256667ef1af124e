package github

import (
	"issuescout/internal/domain"

	"github.com/google/go-github/v53/github"
)

func toIssue(item *github.Issue) domain.Issue {
	issue := domain.Issue{
		ID:            item.GetID(),
		Number:        item.GetNumber(),
		Title:         item.GetTitle(),
		HTMLURL:       item.GetHTMLURL(),
		State:         item.GetState(),
		Comments:      item.GetComments(),
		CreatedAt:     item.GetCreatedAt().Time,
		UpdatedAt:     item.GetUpdatedAt().Time,
		RepositoryURL: item.GetRepositoryURL(),
		Labels:        make([]domain.Label, 0, len(item.Labels)),
	}
	if item.Body != nil {
		body := *item.Body
		issue.Body = &body
	}
	for _, label := range item.Labels {
		issue.Labels = append(issue.Labels, domain.Label{Name: label.GetName(), Color: label.GetColor()})
	}
	if item.Assignee != nil {
		issue.Assignee = &domain.Assignee{
			Login:     item.Assignee.GetLogin(),
			AvatarURL: item.Assignee.GetAvatarURL(),
		}
	}
	return issue
}

func toIssues(items []*github.Issue) []domain.Issue {
	issues := make([]domain.Issue, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		issues = append(issues, toIssue(item))
	}
	return issues
}

func toRepository(repo *github.Repository) domain.Repository {
	language := repo.GetLanguage()
	if language == "" {
		language = domain.LanguageUnknown
	}
	return domain.Repository{
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
		HTMLURL:  repo.GetHTMLURL(),
		Language: language,
		Stars:    repo.GetStargazersCount(),
	}
}
