package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"buildwatch/internal/status"
)

// GitHubActions reads workflow runs from the GitHub REST API. The project is
// "owner/repo/workflow-file", optionally followed by "@branch".
type GitHubActions struct {
	http httpGetter
}

type ghRunsResponse struct {
	WorkflowRuns []ghRun `json:"workflow_runs"`
}

type ghRun struct {
	RunNumber    int       `json:"run_number"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	CreatedAt    time.Time `json:"created_at"`
	RunStartedAt time.Time `json:"run_started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	HTMLURL      string    `json:"html_url"`
	Actor        struct {
		Login string `json:"login"`
	} `json:"actor"`
}

type ghProject struct {
	owner    string
	repo     string
	workflow string
	branch   string
}

func parseGitHubProject(project string) (ghProject, error) {
	var branch string
	if idx := strings.LastIndex(project, "@"); idx >= 0 {
		branch = strings.TrimSpace(project[idx+1:])
		project = project[:idx]
	}
	parts := strings.Split(strings.Trim(project, "/ "), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ghProject{}, fmt.Errorf("project %q must be owner/repo/workflow", project)
	}
	return ghProject{owner: parts[0], repo: parts[1], workflow: parts[2], branch: branch}, nil
}

func (p ghProject) runsURL(base string) string {
	base = strings.TrimRight(base, "/")
	endpoint := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/runs",
		base, url.PathEscape(p.owner), url.PathEscape(p.repo), url.PathEscape(p.workflow))
	query := url.Values{}
	query.Set("per_page", "20")
	if p.branch != "" {
		query.Set("branch", p.branch)
	}
	return endpoint + "?" + query.Encode()
}

// FetchStatus implements Fetcher.
func (g *GitHubActions) FetchStatus(ctx context.Context, server status.Server) (status.Status, error) {
	project, err := parseGitHubProject(server.Project)
	if err != nil {
		return status.Status{}, newFetchError(ErrorConfig, server.URL, err)
	}
	base := server.URL
	if strings.TrimSpace(base) == "" {
		base = "https://api.github.com"
	}
	var auth authFunc
	if server.Token != "" {
		auth = func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+server.Token) }
	}
	endpoint := project.runsURL(base)
	body, err := g.http.get(ctx, endpoint, "application/vnd.github+json", auth)
	if err != nil {
		return status.Status{}, err
	}
	var payload ghRunsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return status.Status{}, newFetchError(ErrorParse, endpoint, fmt.Errorf("decode workflow runs: %w", err))
	}
	return runsToStatus(payload.WorkflowRuns), nil
}

// runsToStatus expects runs newest first, as the API returns them.
func runsToStatus(runs []ghRun) status.Status {
	st := status.Status{Activity: status.ActivitySleeping}
	if len(runs) == 0 {
		return st
	}
	if runs[0].Status != "completed" {
		st.Activity = status.ActivityBuilding
	}
	st.WebURL = runs[0].HTMLURL
	for _, run := range runs {
		if run.Status != "completed" {
			continue
		}
		st.LastBuild = run.toBuild()
		break
	}
	return st
}

func (r ghRun) toBuild() *status.Build {
	started := r.RunStartedAt
	if started.IsZero() {
		started = r.CreatedAt
	}
	build := &status.Build{
		Label:     strconv.Itoa(r.RunNumber),
		Timestamp: started,
		Result:    githubResult(r.Conclusion),
		WebURL:    r.HTMLURL,
	}
	if !started.IsZero() && r.UpdatedAt.After(started) {
		d := r.UpdatedAt.Sub(started)
		build.Duration = &d
	}
	if r.Actor.Login != "" {
		build.Contributors = []string{r.Actor.Login}
	}
	return build
}

func githubResult(conclusion string) status.Result {
	switch conclusion {
	case "success":
		return status.ResultSuccess
	case "failure", "timed_out", "startup_failure":
		return status.ResultFailure
	default:
		return status.ResultUnknown
	}
}
